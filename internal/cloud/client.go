// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transport"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultBaseURL is the llama.cpp server default.
const DefaultBaseURL = "http://127.0.0.1:8080/v1"

// Config holds configuration for the OpenAI-compatible transport.
type Config struct {
	BaseURL        string
	Model          string
	ConnectTimeout time.Duration
	Temperature    float64
	MaxTokens      int
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport streams completions from an OpenAI-compatible server.
type Transport struct {
	config Config
	client *resty.Client
}

// NewTransport creates the transport. An empty BaseURL selects
// DefaultBaseURL.
func NewTransport(cfg Config) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Transport{
		config: cfg,
		client: transport.NewRestyClient("openai", cfg.ConnectTimeout),
	}
}

// Model returns the configured model name.
func (t *Transport) Model() string {
	return t.config.Model
}

// Send posts a streaming /chat/completions request.
func (t *Transport) Send(ctx context.Context, payload model.Transcript) (transport.ChunkStream, error) {
	req := ChatRequest{
		Model:       t.config.Model,
		Messages:    chatMessages(payload),
		Stream:      true,
		Temperature: t.config.Temperature,
		MaxTokens:   t.config.MaxTokens,
	}
	body, err := transport.PostStream(ctx, t.client, t.config.BaseURL+"/chat/completions", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return newEventStream(body), nil
}

// ListModels returns the models the server advertises.
func (t *Transport) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result modelsResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(t.config.BaseURL + "/models")
	if err != nil {
		return nil, transport.NewError(0, "request failed", err)
	}
	if resp.IsError() {
		return nil, transport.NewError(resp.StatusCode(), "failed to list models", nil)
	}
	return result.Data, nil
}

// Ping checks that the server answers /models.
func (t *Transport) Ping(ctx context.Context) error {
	_, err := t.ListModels(ctx)
	return err
}

// =============================================================================
// EVENT STREAM
// =============================================================================

var doneMarker = []byte("[DONE]")

// eventStream turns SSE completion chunks into content chunks.
type eventStream struct {
	body     io.ReadCloser
	reader   *SSEReader
	finished bool // saw a finish_reason
	err      error
	once     sync.Once
}

func newEventStream(body io.ReadCloser) *eventStream {
	return &eventStream{body: body, reader: NewSSEReader(body)}
}

// Next returns the next non-empty delta.
func (s *eventStream) Next() ([]byte, error) {
	for s.err == nil {
		_, data, err := s.reader.ReadEvent()
		if err != nil {
			s.err = s.classify(err)
			break
		}
		if bytes.Equal(bytes.TrimSpace(data), doneMarker) {
			s.err = io.EOF
			break
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			log.Debug().Err(err).Int("bytes", len(data)).Msg("skipping malformed SSE chunk")
			continue
		}
		if chunk.Error != nil {
			s.err = transport.NewError(0, "server error: "+chunk.Error.Message, nil)
			break
		}
		if chunk.IsDone() {
			s.finished = true
		}
		if content := chunk.GetContent(); content != "" {
			return []byte(content), nil
		}
	}
	return nil, s.err
}

// classify maps a reader error to the stream's terminal error. A clean EOF
// is only accepted after a finish_reason.
func (s *eventStream) classify(err error) error {
	if errors.Is(err, io.EOF) {
		if s.finished {
			return io.EOF
		}
		return transport.NewError(0, "stream ended before [DONE]", io.ErrUnexpectedEOF)
	}
	return transport.NewError(0, "stream interrupted", err)
}

// Close closes the response body once.
func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
