// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lerit/internal/config"
	"github.com/jeranaias/lerit/internal/engine"
)

func newChatCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "chat",
		Short:       "Line-mode chat with history",
		Long:        "Interactive line chat. Ctrl+C stops a streaming response, /quit exits.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logAnnotation: logToFile},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runChat(cmd.Context())
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for line chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt and records it in history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	_ = c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

const chatHelp = `Commands:
  /help   show this help
  /quit   exit (also /exit, Ctrl+D)

Ctrl+C while a response streams stops it and keeps the partial text.`

func (a *App) runChat(ctx context.Context) error {
	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	input := NewChatCLI()
	defer input.Close()

	fmt.Fprintln(a.Stdout, TitleStyle.Render("lerit")+" "+DimStyle.Render(Describe(a.Config.Transport)))
	fmt.Fprintln(a.Stdout, DimStyle.Render("Type /help for commands."))

	return interruptible(func() {
		if eng.Cancel() {
			log.Debug().Msg("interrupt cancelled response")
		}
	}, func() error {
		for {
			if ctx.Err() != nil {
				return nil
			}
			line, err := input.ReadInput(PromptStyle.Render("lerit> "))
			if err != nil {
				// Ctrl+C at the prompt, Ctrl+D, or closed stdin.
				fmt.Fprintln(a.Stdout)
				return nil
			}

			text := strings.TrimSpace(line)
			switch {
			case text == "":
				continue
			case text == "/quit" || text == "/exit":
				return nil
			case text == "/help":
				fmt.Fprintln(a.Stdout, chatHelp)
				continue
			case strings.HasPrefix(text, "/"):
				fmt.Fprintln(a.Stderr, WarningStyle.Render("Unknown command: ")+text)
				continue
			}

			if _, err := streamTurn(ctx, eng, line, a.Stdout, a.Stderr); err != nil {
				if errors.Is(err, engine.ErrClosed) {
					return nil
				}
				log.Debug().Err(err).Msg("turn failed")
			}
		}
	})
}
