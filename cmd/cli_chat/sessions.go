package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flyer-agent/internal/domain"
)

type sessionsOutput struct {
	UserID   string                  `json:"user_id" yaml:"user_id"`
	Sessions []domain.SessionPreview `json:"sessions" yaml:"sessions"`
}

func newSessionsCmd(opts *cliOptions, rt *cliRuntime) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the user's sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			if err := requireRuntime(rt); err != nil {
				return err
			}
			sessions, err := rt.sessions.ListSessions(cmd.Context(), opts.userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !strings.EqualFold(format, formatText) {
				return writeStructured(out, format, sessionsOutput{UserID: strings.TrimSpace(opts.userID), Sessions: sessions})
			}

			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions yet.")
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Sessions for %s (%d)", opts.userID, len(sessions))))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\n", idStyle.Render(s.SessionID), s.Preview)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}
