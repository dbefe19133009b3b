// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jeranaias/lerit/internal/model"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize caps the JSON payload (1MB).
	MaxRequestBodySize = 1 << 20

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 5 * time.Second

	// EchoPrefix starts replies when no fixed reply is configured.
	EchoPrefix = "You said: "
)

// ============================================================================
// CONFIG
// ============================================================================

// Config configures the stub server.
type Config struct {
	Addr string
	// TokenDelay paces words; zero streams as fast as possible.
	TokenDelay time.Duration
	// Reply is streamed for every request. Empty echoes the last user turn.
	Reply string
	// SplitUTF8 writes every word in two flushes cut at its byte midpoint,
	// which splits multi-byte characters across chunks.
	SplitUTF8 bool
	// FailAfter aborts the connection after this many words. Zero disables.
	FailAfter int
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the stub completion service.
type Server struct {
	mu      sync.RWMutex
	config  Config
	router  *mux.Router
	metrics *Metrics
}

type chatRequest struct {
	Messages []model.Message `json:"messages"`
}

// New creates a server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		config:  cfg,
		router:  mux.NewRouter(),
		metrics: NewMetrics(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(RecoveryMiddleware(), LoggingMiddleware())
	s.router.HandleFunc("/api/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Reconfigure swaps the reply and pacing for requests that start after it
// returns. Streams already in flight keep their settings.
func (s *Server) Reconfigure(reply string, tokenDelay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Reply = reply
	s.config.TokenDelay = tokenDelay
	log.Info().Str("reply", reply).Dur("token_delay", tokenDelay).Msg("stub reconfigured")
}

func (s *Server) snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := s.snapshot().Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. Request
// contexts are derived from ctx, so in-flight streams stop on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msg("stub server listening")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		log.Info().Msg("stub server stopped")
		return nil
	})
	return g.Wait()
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cfg := s.snapshot()
	reply := replyFor(cfg.Reply, req.Messages)
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.TokenDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.TokenDelay), 1)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	s.metrics.observeStatus(http.StatusOK)

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	for i, word := range Words(reply) {
		if cfg.FailAfter > 0 && i >= cfg.FailAfter {
			log.Warn().Int("words", i).Msg("aborting stream")
			panic(http.ErrAbortHandler)
		}
		if err := limiter.Wait(r.Context()); err != nil {
			log.Debug().Err(err).Msg("client went away")
			return
		}
		for _, part := range parts(word, cfg.SplitUTF8) {
			n, err := io.WriteString(w, part)
			s.metrics.BytesStreamed.Add(float64(n))
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// replyFor returns the fixed reply or an echo of the last user turn.
func replyFor(fixed string, messages []model.Message) string {
	if fixed != "" {
		return fixed
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser.String() {
			return EchoPrefix + messages[i].Content
		}
	}
	return EchoPrefix
}

func parts(word string, split bool) []string {
	if !split || len(word) < 2 {
		return []string{word}
	}
	mid := len(word) / 2
	return []string{word[:mid], word[mid:]}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.metrics.observeStatus(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ============================================================================
// HELPERS
// ============================================================================

// validateMessages requires a non-empty transcript of user and assistant
// messages.
func validateMessages(messages []model.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, msg := range messages {
		if !model.Role(msg.Role).Valid() {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant", msg.Role, i)
		}
	}
	return nil
}

// Words splits text into words that keep their trailing whitespace, so
// joining the result yields text unchanged.
func Words(text string) []string {
	var words []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !space {
			words = append(words, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		words = append(words, text[start:])
	}
	return words
}
