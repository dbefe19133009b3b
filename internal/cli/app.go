// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lerit/internal/cloud"
	"github.com/jeranaias/lerit/internal/config"
	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/logging"
	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/ollama"
	"github.com/jeranaias/lerit/internal/transport"
)

// PingTimeout bounds the reachability check run before a session.
const PingTimeout = 3 * time.Second

// =============================================================================
// APP
// =============================================================================

// App carries the loaded configuration and the streams commands write to.
type App struct {
	Config *config.Config

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	closeLog func() error
}

// NewApp returns an App bound to the process's standard streams.
func NewApp() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	url        string
	transport  string
	model      string
	logLevel   string
	busyPolicy string
}

// configFile returns --config or the default config path.
func (f *globalFlags) configFile() (string, error) {
	if f.configPath != "" {
		return f.configPath, nil
	}
	return config.ConfigPath()
}

// apply overrides cfg with the flags that were set and re-validates it.
func (f *globalFlags) apply(cfg *config.Config) error {
	if f.transport != "" {
		// A URL derived from the old kind follows the new one.
		if f.url == "" && cfg.Transport.URL == config.DefaultURL(cfg.Transport.Kind) {
			cfg.Transport.URL = ""
		}
		cfg.Transport.Kind = f.transport
	}
	if f.url != "" {
		cfg.Transport.URL = f.url
	}
	if f.model != "" {
		cfg.Transport.Model = f.model
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.busyPolicy != "" {
		cfg.Engine.BusyPolicy = f.busyPolicy
	}
	return cfg.Finalize()
}

// Per-command behavior selected through cobra annotations.
const (
	logAnnotation = "lerit/log"
	logToFile     = "file"

	configAnnotation = "lerit/config"
	configOptional   = "optional"
)

// setup loads configuration and installs the logger for cmd. Commands that
// own the terminal log to the configured file; the rest log to stderr.
func (a *App) setup(cmd *cobra.Command, flags *globalFlags) error {
	load := config.Load
	if cmd.Annotations[configAnnotation] == configOptional {
		load = config.LoadOptional
	}
	cfg, err := load(flags.configPath)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return errors.Wrap(err, "invalid flags")
	}
	a.Config = cfg

	opts := logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Stderr: a.Stderr,
	}
	if cmd.Annotations[logAnnotation] == logToFile {
		opts.File = cfg.Log.File
	}
	closeLog, err := logging.Setup(opts)
	if err != nil {
		return err
	}
	a.closeLog = closeLog

	log.Debug().
		Str("command", cmd.Name()).
		Str("transport", cfg.Transport.Kind).
		Str("url", cfg.Transport.URL).
		Msg("configuration loaded")
	return nil
}

func (a *App) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// =============================================================================
// WIRING
// =============================================================================

// BuildTransport creates the transport selected by cfg.Kind.
func BuildTransport(cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case config.KindRaw:
		return transport.NewHTTP(transport.HTTPConfig{
			URL:            cfg.URL,
			ConnectTimeout: cfg.ConnectTimeout,
		}), nil
	case config.KindOllama:
		return ollama.NewTransport(ollama.Config{
			BaseURL:        cfg.URL,
			Model:          cfg.Model,
			ConnectTimeout: cfg.ConnectTimeout,
		}), nil
	case config.KindOpenAI:
		return cloud.NewTransport(cloud.Config{
			BaseURL:        cfg.URL,
			Model:          cfg.Model,
			ConnectTimeout: cfg.ConnectTimeout,
		}), nil
	default:
		return nil, errors.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// Describe returns a one-line summary of the transport settings.
func Describe(cfg config.TransportConfig) string {
	parts := []string{cfg.Kind}
	if cfg.Model != "" && cfg.Kind != config.KindRaw {
		parts = append(parts, cfg.Model)
	}
	parts = append(parts, cfg.URL)
	return strings.Join(parts, " · ")
}

// newEngine builds the transport and engine for a session.
func (a *App) newEngine(ctx context.Context) (*engine.Engine, error) {
	tr, err := BuildTransport(a.Config.Transport)
	if err != nil {
		return nil, err
	}
	a.checkReachable(ctx, tr)

	policy, err := engine.ParseBusyPolicy(a.Config.Engine.BusyPolicy)
	if err != nil {
		return nil, err
	}
	return engine.New(tr,
		engine.WithBusyPolicy(policy),
		engine.WithLogger(logging.Component("engine")),
	), nil
}

// checkReachable pings transports that support it and warns on failure.
// The session still starts; the first request reports the error.
func (a *App) checkReachable(ctx context.Context, tr transport.Transport) {
	p, ok := tr.(transport.Pinger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("completion service unreachable")
		fmt.Fprintln(a.Stderr, WarningStyle.Render("Warning: ")+
			fmt.Sprintf("%s is not reachable: %v", a.Config.Transport.URL, err))
	}
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// deltaPrinter is a transcript observer that writes the new suffix of the
// last assistant turn to w. Assistant content only grows, so the printed
// prefix never changes.
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	id      model.TurnID
	printed int
}

func (p *deltaPrinter) OnTranscriptChanged(snapshot model.Transcript) {
	last, ok := snapshot.Last()
	if !ok || last.Role != model.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if last.ID != p.id {
		p.id = last.ID
		p.printed = 0
	}
	if len(last.Content) > p.printed {
		_, _ = io.WriteString(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}

// streamTurn submits text, prints the reply as it streams, and returns the
// finalized assistant turn. A failed turn's message goes to errOut.
func streamTurn(ctx context.Context, eng *engine.Engine, text string, out, errOut io.Writer) (model.Turn, error) {
	printer := &deltaPrinter{w: out}
	unsubscribe := eng.Subscribe(printer)
	defer unsubscribe()

	req, err := eng.Submit(ctx, text)
	if err != nil {
		return model.Turn{}, err
	}
	turn, err := req.Result()
	if !turn.IsEmpty() {
		fmt.Fprintln(out)
	}
	if err != nil {
		style := ErrorStyle
		if errors.Is(err, engine.ErrCancelled) {
			style = WarningStyle
		}
		fmt.Fprintln(errOut, style.Render(turn.Error))
	}
	return turn, err
}
