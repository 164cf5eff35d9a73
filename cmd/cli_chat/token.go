package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flyer-agent/internal/service"
)

func newTokenCmd(opts *cliOptions, rt *cliRuntime) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development access token for the API",
		Long: `Sign an HS256 access token with SUPABASE_JWT_SECRET for the given user,
useful to call the API locally with AUTH_MODE=jwt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireRuntime(rt); err != nil {
				return err
			}
			if rt.cfg.JWTSecret == "" {
				return errors.New("SUPABASE_JWT_SECRET is not set")
			}
			token, err := service.NewJWTVerifier(rt.cfg.JWTSecret, rt.cfg.JWTAudience).IssueToken(opts.userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
