package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flyer-agent/internal/domain"
)

func newChatCmd(opts *cliOptions, rt *cliRuntime) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Start or resume a conversation",
		Long: `Start or resume a conversation. Without a session id a new one is created.
Type 'exit' or 'salir' to leave the REPL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRuntime(rt); err != nil {
				return err
			}
			sessionID := uuid.NewString()
			if len(args) == 1 {
				sessionID = args[0]
			}
			out := cmd.OutOrStdout()

			send := func(text string) error {
				res, err := rt.turns.Generate(cmd.Context(), opts.userID, sessionID, text)
				if err != nil {
					return err
				}
				reply := res.Response
				if res.Design != nil && res.Design.AIMessage != "" {
					reply = res.Design.AIMessage
				}
				fmt.Fprintf(out, "%s %s\n", aiStyle.Render("ai >"), reply)
				return nil
			}

			if strings.TrimSpace(message) != "" {
				if err := send(message); err != nil {
					return err
				}
				fmt.Fprintln(out, idStyle.Render("session: "+sessionID))
				return nil
			}

			fmt.Fprintln(out, headerStyle.Render("Flyer agent chat (type 'exit' to quit)"))
			fmt.Fprintln(out, idStyle.Render("session: "+sessionID))
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, userStyle.Render("you > "))
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if strings.EqualFold(text, "exit") || strings.EqualFold(text, "salir") {
					return nil
				}
				if err := send(text); err != nil {
					if errors.Is(err, domain.ErrValidation) {
						return err
					}
					// Un fallo del backend no corta la sesion; el turno no quedo guardado.
					fmt.Fprintln(out, errorStyle.Render("error: "+err.Error()))
				}
			}
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single message and exit")
	return cmd
}
