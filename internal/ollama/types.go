// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/jeranaias/lerit/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is a chat message in Ollama's wire format.
type Message struct {
	Role    string `json:"role"`    // "user", "assistant"
	Content string `json:"content"` // The message content
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream"`
	Options   *Options  `json:"options,omitempty"`
	KeepAlive string    `json:"keep_alive,omitempty"`
}

// Options contains model parameters for inference.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"` // 0.0-2.0, default 0.8
	NumCtx      int     `json:"num_ctx,omitempty"`     // Context window size
}

// messagesFromTranscript converts a request payload to wire messages.
func messagesFromTranscript(payload model.Transcript) []Message {
	msgs := make([]Message, 0, len(payload))
	for _, m := range payload.Messages() {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// Frame is one line of a streaming /api/chat response.
type Frame struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Error      string    `json:"error,omitempty"`

	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// ModelInfo describes a locally available model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModelsResponse is the response from /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// FormatSize returns a human-readable size string.
func (m ModelInfo) FormatSize() string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case m.Size >= gb:
		return formatFloat(float64(m.Size)/gb) + " GB"
	case m.Size >= mb:
		return formatFloat(float64(m.Size)/mb) + " MB"
	case m.Size >= kb:
		return formatFloat(float64(m.Size)/kb) + " KB"
	default:
		return formatFloat(float64(m.Size)) + " B"
	}
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics reported by the done frame.
type StreamStats struct {
	StartTime        time.Time
	FirstTokenTime   time.Time
	EndTime          time.Time
	TotalDuration    time.Duration
	LoadDuration     time.Duration
	EvalDuration     time.Duration
	PromptTokens     int
	CompletionTokens int
}

// RecordFirstToken marks the arrival of the first content.
func (s *StreamStats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
	}
}

// Finalize copies the server-side figures from the done frame.
func (s *StreamStats) Finalize(f Frame) {
	s.EndTime = time.Now()
	s.TotalDuration = time.Duration(f.TotalDuration)
	s.LoadDuration = time.Duration(f.LoadDuration)
	s.EvalDuration = time.Duration(f.EvalDuration)
	s.PromptTokens = f.PromptEvalCount
	s.CompletionTokens = f.EvalCount
}

// TTFT returns the time to first token.
func (s *StreamStats) TTFT() time.Duration {
	if s.FirstTokenTime.IsZero() {
		return 0
	}
	return s.FirstTokenTime.Sub(s.StartTime)
}

// TokensPerSecond returns the generation rate.
func (s *StreamStats) TokensPerSecond() float64 {
	if s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// formatFloat formats a float with one decimal place.
func formatFloat(f float64) string {
	whole := int64(f)
	frac := int64((f-float64(whole))*10 + 0.5)
	if frac >= 10 {
		whole++
		frac = 0
	}
	return itoa(whole) + "." + itoa(frac)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
