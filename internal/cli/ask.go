// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newAskCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and stream the reply to stdout",
		Long: `Send one prompt and stream the reply to stdout.

With no argument the prompt is read from stdin. The exit status is non-zero
when the response fails or is interrupted.`,
		Example: `  lerit ask "What is a goroutine?"
  echo "Summarize this" | lerit ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				data, err := io.ReadAll(app.Stdin)
				if err != nil {
					return errors.Wrap(err, "read prompt from stdin")
				}
				prompt = string(data)
			}
			return app.Ask(cmd.Context(), prompt)
		},
	}
}

// Ask streams one reply for prompt. Interrupting cancels the request.
func (a *App) Ask(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("empty prompt")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if _, err := streamTurn(ctx, eng, prompt, a.Stdout, a.Stderr); err != nil {
		return errors.Wrap(err, "response failed")
	}
	return nil
}
