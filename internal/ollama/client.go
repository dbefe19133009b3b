// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transport"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Defaults for a local Ollama server.
const (
	// Explicit IPv4 avoids localhost resolving to ::1 where Ollama is not bound.
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "llama3.2"
)

// Config holds configuration for the Ollama transport.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// Model is sent with every chat request (default: llama3.2)
	Model string

	// ConnectTimeout bounds dialing only; streams are unbounded.
	ConnectTimeout time.Duration

	// Options are passed through to the model, if set.
	Options *Options
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport streams chat completions from Ollama.
//
// The Transport is safe for concurrent use.
type Transport struct {
	config Config
	client *resty.Client
}

// NewTransport creates an Ollama transport. Empty fields take defaults.
func NewTransport(cfg Config) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Transport{
		config: cfg,
		client: transport.NewRestyClient("ollama", cfg.ConnectTimeout),
	}
}

// Model returns the model requests are sent to.
func (t *Transport) Model() string {
	return t.config.Model
}

// Send posts the payload to /api/chat with streaming enabled.
func (t *Transport) Send(ctx context.Context, payload model.Transcript) (transport.ChunkStream, error) {
	req := ChatRequest{
		Model:    t.config.Model,
		Messages: messagesFromTranscript(payload),
		Stream:   true,
		Options:  t.config.Options,
	}
	body, err := transport.PostStream(ctx, t.client, t.config.BaseURL+"/api/chat", req, "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	return newFrameStream(body), nil
}

// =============================================================================
// HEALTH CHECK & MODELS
// =============================================================================

// Ping verifies that Ollama is reachable and running.
func (t *Transport) Ping(ctx context.Context) error {
	resp, err := t.client.R().SetContext(ctx).Get(t.config.BaseURL)
	if err != nil {
		return transport.NewError(0, "Ollama is not running", err)
	}
	if resp.StatusCode() != 200 {
		return transport.NewError(resp.StatusCode(), "unexpected status from Ollama", nil)
	}
	return nil
}

// ListModels retrieves all locally available models.
func (t *Transport) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(t.config.BaseURL + "/api/tags")
	if err != nil {
		return nil, transport.NewError(0, "Ollama is not running", err)
	}
	if resp.IsError() {
		return nil, transport.NewError(resp.StatusCode(), "failed to list models", nil)
	}
	return result.Models, nil
}

// HasModel reports whether the configured model is available locally.
// Names without a tag match any tag.
func (t *Transport) HasModel(ctx context.Context) (bool, error) {
	models, err := t.ListModels(ctx)
	if err != nil {
		return false, err
	}
	want := t.config.Model
	for _, m := range models {
		if m.Name == want {
			return true, nil
		}
		if !strings.Contains(want, ":") && strings.HasPrefix(m.Name, want+":") {
			return true, nil
		}
	}
	return false, nil
}
