package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flyer-agent/internal/domain"
)

type historyOutput struct {
	SessionID    string                   `json:"session_id" yaml:"session_id"`
	Conversation []domain.TranscriptEntry `json:"conversation" yaml:"conversation"`
}

func newHistoryCmd(opts *cliOptions, rt *cliRuntime) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			if err := requireRuntime(rt); err != nil {
				return err
			}
			sessionID := strings.TrimSpace(args[0])
			conversation, err := rt.history.Project(cmd.Context(), opts.userID, sessionID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !strings.EqualFold(format, formatText) {
				return writeStructured(out, format, historyOutput{SessionID: sessionID, Conversation: conversation})
			}

			if len(conversation) == 0 {
				fmt.Fprintln(out, "Empty conversation.")
				return nil
			}
			for _, entry := range conversation {
				label := userStyle.Render("you >")
				if entry.Role == domain.TranscriptRoleAI {
					label = aiStyle.Render("ai >")
				}
				fmt.Fprintf(out, "%s %s\n", label, entry.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}
