// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"time"

	"resty.dev/v3"

	"github.com/jeranaias/lerit/internal/model"
)

// DefaultURL is the chat endpoint served by `lerit stub`.
const DefaultURL = "http://127.0.0.1:3000/api/chat"

// HTTPConfig configures the raw streaming transport.
type HTTPConfig struct {
	URL            string
	ConnectTimeout time.Duration
	// ReadSize caps the bytes returned by a single Next call.
	ReadSize int
}

// HTTP posts {"messages":[...]} and streams the undelimited response body.
type HTTP struct {
	url      string
	readSize int
	client   *resty.Client
}

type chatRequest struct {
	Messages []model.Message `json:"messages"`
}

// NewHTTP creates the raw HTTP transport.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &HTTP{
		url:      cfg.URL,
		readSize: cfg.ReadSize,
		client:   NewRestyClient("chat", cfg.ConnectTimeout),
	}
}

// URL returns the endpoint requests are sent to.
func (h *HTTP) URL() string {
	return h.url
}

// Send posts the payload and returns the response body as a chunk stream.
func (h *HTTP) Send(ctx context.Context, payload model.Transcript) (ChunkStream, error) {
	body, err := PostStream(ctx, h.client, h.url, chatRequest{Messages: payload.Messages()}, "text/plain")
	if err != nil {
		return nil, err
	}
	return NewReaderStream(body, h.readSize), nil
}
