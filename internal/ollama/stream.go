// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/lerit/internal/transport"
)

// =============================================================================
// FRAME STREAM
// =============================================================================

// frameStream turns NDJSON frames into content chunks.
type frameStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	stats  StreamStats
	done   bool
	err    error
	once   sync.Once
}

func newFrameStream(body io.ReadCloser) *frameStream {
	return &frameStream{
		body:   body,
		reader: bufio.NewReader(body),
		stats:  StreamStats{StartTime: time.Now()},
	}
}

// Next returns the content of the next frame that carries any.
func (s *frameStream) Next() ([]byte, error) {
	for s.err == nil {
		frame, err := s.readFrame()
		if err != nil {
			s.err = err
			break
		}
		if frame == nil {
			continue
		}
		if frame.Error != "" {
			s.err = transport.NewError(0, "ollama: "+frame.Error, nil)
			break
		}
		if frame.Done {
			s.done = true
			s.err = io.EOF
			s.stats.Finalize(*frame)
			log.Debug().
				Str("model", frame.Model).
				Str("done_reason", frame.DoneReason).
				Int("completion_tokens", s.stats.CompletionTokens).
				Float64("tokens_per_second", s.stats.TokensPerSecond()).
				Dur("ttft", s.stats.TTFT()).
				Msg("ollama stream done")
			if frame.Message.Content != "" {
				return []byte(frame.Message.Content), nil
			}
			break
		}
		if frame.Message.Content != "" {
			s.stats.RecordFirstToken()
			return []byte(frame.Message.Content), nil
		}
	}
	return nil, s.err
}

// readFrame reads and parses a single line. It returns nil for blank or
// unparsable lines.
func (s *frameStream) readFrame() (*Frame, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, transport.NewError(0, "stream interrupted", err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return nil, transport.NewError(0, "stream ended before done frame", io.ErrUnexpectedEOF)
		}
		// Process the last line even without a trailing newline.
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var frame Frame
	if err := json.Unmarshal(line, &frame); err != nil {
		log.Debug().Err(err).Int("bytes", len(line)).Msg("skipping malformed ollama frame")
		return nil, nil
	}
	return &frame, nil
}

// Stats returns the statistics gathered so far.
func (s *frameStream) Stats() StreamStats {
	return s.stats
}

// Close closes the response body once.
func (s *frameStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
