// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/lerit/internal/config"
	"github.com/jeranaias/lerit/internal/server"
)

func newStubCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		addr      string
		reply     string
		splitUTF8 bool
		failAfter int
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run a local streaming completion server",
		Long: `Run a local completion server for trying lerit without a model.

POST /api/chat streams the configured reply, or an echo of the last user
message, one word at a time. /healthz and /metrics are served alongside.

With --watch, edits to stub.reply and stub.token_delay in the config file
apply to the next request without a restart.`,
		Example: `  lerit stub --reply "Hello there!"
  lerit stub --split-utf8 --fail-after 5
  lerit stub --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config.Stub
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			replyPinned := cmd.Flags().Changed("reply")
			if replyPinned {
				cfg.Reply = reply
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			srv := server.New(server.Config{
				Addr:       cfg.Addr,
				TokenDelay: cfg.TokenDelay,
				Reply:      cfg.Reply,
				SplitUTF8:  splitUTF8,
				FailAfter:  failAfter,
			})
			fmt.Fprintf(app.Stdout, "%s listening on http://%s/api/chat\n", TitleStyle.Render("stub"), cfg.Addr)

			if !watch {
				return srv.Run(ctx)
			}

			path, err := flags.configFile()
			if err != nil {
				return err
			}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			g.Go(func() error {
				return watchStubConfig(gctx, srv, path, cfg.Reply, replyPinned)
			})
			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:3000)")
	f.StringVar(&reply, "reply", "", "fixed reply; empty echoes the last user message")
	f.BoolVar(&splitUTF8, "split-utf8", false, "split every word across two writes")
	f.IntVar(&failAfter, "fail-after", 0, "drop the connection after this many words")
	f.BoolVar(&watch, "watch", false, "reload reply and token_delay when the config file changes")
	return cmd
}

// watchStubConfig feeds config file edits into srv. A reply given on the
// command line stays fixed.
func watchStubConfig(ctx context.Context, srv *server.Server, path, reply string, replyPinned bool) error {
	err := config.Watch(ctx, path, config.DefaultWatchDebounce, func(cfg *config.Config) {
		next := cfg.Stub.Reply
		if replyPinned {
			next = reply
		}
		srv.Reconfigure(next, cfg.Stub.TokenDelay)
	})
	if err != nil {
		// The server keeps running on its startup settings.
		log.Warn().Err(err).Str("path", path).Msg("config watch disabled")
		<-ctx.Done()
	}
	return nil
}
