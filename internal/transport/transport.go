// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"

	"github.com/jeranaias/lerit/internal/model"
)

// =============================================================================
// INTERFACES
// =============================================================================

// ChunkStream is an ongoing response body.
type ChunkStream interface {
	// Next returns the next chunk of raw bytes. It returns io.EOF once the
	// stream has ended cleanly and an *Error for any other termination.
	Next() ([]byte, error)

	// Close releases the underlying connection. It is safe to call more than
	// once and concurrently with Next.
	Close() error
}

// Transport sends a transcript to a completion service.
type Transport interface {
	Send(ctx context.Context, payload model.Transcript) (ChunkStream, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, payload model.Transcript) (ChunkStream, error)

// Send calls f(ctx, payload).
func (f Func) Send(ctx context.Context, payload model.Transcript) (ChunkStream, error) {
	return f(ctx, payload)
}

// Pinger is implemented by transports that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the single failure kind surfaced by transports.
type Error struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := "transport: " + e.Message
	if e.StatusCode != 0 {
		msg += " (status " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a transport error.
func NewError(statusCode int, message string, cause error) *Error {
	return &Error{StatusCode: statusCode, Message: message, Cause: cause}
}

// IsTransportError reports whether err is, or wraps, a transport *Error.
func IsTransportError(err error) bool {
	var terr *Error
	return errors.As(err, &terr)
}

// =============================================================================
// READER STREAM
// =============================================================================

// DefaultReadSize is the largest chunk a ReaderStream returns from Next.
const DefaultReadSize = 4096

// ReaderStream adapts an io.ReadCloser to ChunkStream. Every Read becomes
// one chunk; no framing is applied.
type ReaderStream struct {
	body     io.ReadCloser
	buf      []byte
	err      error
	closeErr error
	once     sync.Once
}

// NewReaderStream wraps body. A non-positive readSize selects DefaultReadSize.
func NewReaderStream(body io.ReadCloser, readSize int) *ReaderStream {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	return &ReaderStream{body: body, buf: make([]byte, readSize)}
}

// Next returns the next chunk read from the body.
func (s *ReaderStream) Next() ([]byte, error) {
	for s.err == nil {
		n, err := s.body.Read(s.buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.err = io.EOF
			} else {
				s.err = NewError(0, "stream interrupted", err)
			}
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
	}
	return nil, s.err
}

// Close closes the body once.
func (s *ReaderStream) Close() error {
	s.once.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// =============================================================================
// SLICE STREAM
// =============================================================================

// SliceStream replays a fixed list of chunks, then ends with Err (io.EOF
// when Err is nil). It is useful for tests and canned replies.
type SliceStream struct {
	mu     sync.Mutex
	chunks [][]byte
	Err    error
	closed bool
}

// NewSliceStream returns a stream over chunks.
func NewSliceStream(chunks ...[]byte) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// NewStringStream returns a stream over string chunks.
func NewStringStream(chunks ...string) *SliceStream {
	bs := make([][]byte, len(chunks))
	for i, c := range chunks {
		bs[i] = []byte(c)
	}
	return NewSliceStream(bs...)
}

// Next returns the next chunk.
func (s *SliceStream) Next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewError(0, "stream closed", nil)
	}
	if len(s.chunks) == 0 {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

// Close marks the stream closed.
func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *SliceStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
