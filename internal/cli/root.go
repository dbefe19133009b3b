// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lerit/internal/ui/chat"
	"github.com/jeranaias/lerit/internal/ui/styles"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := NewApp()
	if err := NewRootCommand(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(app.Stderr, ErrorStyle.Render("Error:")+" "+err.Error())
		return 1
	}
	return 0
}

// NewRootCommand builds the lerit command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "lerit",
		Short: "Stream conversations with a completion service",
		Long: `lerit keeps a conversation with a streaming completion service.

With no command it opens the chat view when attached to a terminal and
falls back to line chat otherwise.`,
		Version:       fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildDate),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Annotations:   map[string]string{logAnnotation: logToFile},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd, flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if Interactive() {
				return app.runTUI(cmd.Context())
			}
			return app.runChat(cmd.Context())
		},
	}
	root.SetIn(app.Stdin)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.lerit/config.toml)")
	pf.StringVar(&flags.url, "url", "", "completion endpoint or API base URL")
	pf.StringVar(&flags.transport, "transport", "", "transport kind: raw, ollama or openai")
	pf.StringVar(&flags.model, "model", "", "model name for ollama and openai transports")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.busyPolicy, "busy-policy", "", "submitting while streaming: supersede or reject")

	root.AddCommand(
		newChatCommand(app),
		newAskCommand(app),
		newStubCommand(app, flags),
		newModelsCommand(app),
		newConfigCommand(app, flags),
	)
	return root
}

// runTUI opens the full-screen chat view.
func (a *App) runTUI(ctx context.Context) error {
	eng, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	return chat.Run(ctx, eng, chat.Options{
		MaxFPS:   a.Config.UI.MaxFPS,
		Markdown: a.Config.UI.Markdown,
		Theme:    styles.NewTheme(a.Config.UI.Theme),
		Title:    Describe(a.Config.Transport),
	})
}

// interruptible runs fn with SIGINT delivered to onInterrupt instead of
// terminating the process.
func interruptible(onInterrupt func(), fn func() error) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sig:
				onInterrupt()
			case <-done:
				return
			}
		}
	}()
	return fn()
}
