// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lerit/internal/model"
)

func drain(t *testing.T, s ChunkStream) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sb.String(), nil
			}
			return sb.String(), err
		}
		sb.Write(chunk)
	}
}

func samplePayload() model.Transcript {
	return model.Transcript{
		model.NewUserTurn("Hi"),
	}
}

// =============================================================================
// ERROR
// =============================================================================

func TestErrorFormatting(t *testing.T) {
	err := NewError(502, "unexpected status", nil)
	assert.Equal(t, "transport: unexpected status (status 502)", err.Error())

	cause := errors.New("dial refused")
	err = NewError(0, "request failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsTransportError(cause))
}

// =============================================================================
// STREAMS
// =============================================================================

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *failingReader) Close() error { return nil }

func TestReaderStreamChunksAndEOF(t *testing.T) {
	s := NewReaderStream(io.NopCloser(strings.NewReader("abcdefghij")), 4)
	var chunks []string
	for {
		c, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, string(c))
	}
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)

	_, err := s.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestReaderStreamPrematureClose(t *testing.T) {
	s := NewReaderStream(&failingReader{data: []byte("Hel"), err: io.ErrUnexpectedEOF}, 0)
	got, err := drain(t, s)
	assert.Equal(t, "Hel", got)
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSliceStream(t *testing.T) {
	s := NewStringStream("a", "b")
	got, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	s = NewStringStream("x")
	s.Err = NewError(0, "reset", nil)
	got, err = drain(t, s)
	assert.Equal(t, "x", got)
	assert.True(t, IsTransportError(err))

	s = NewStringStream("y")
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Next()
	assert.Error(t, err)
}

// =============================================================================
// HTTP TRANSPORT
// =============================================================================

func TestHTTPSendStreamsBody(t *testing.T) {
	var received chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, part := range []string{"Hel", "lo", "!"} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	tr := NewHTTP(HTTPConfig{URL: srv.URL + "/api/chat"})
	stream, err := tr.Send(context.Background(), samplePayload())
	require.NoError(t, err)
	defer stream.Close()

	got, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)
	assert.Equal(t, []model.Message{{Role: "user", Content: "Hi"}}, received.Messages)
}

func TestHTTPNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTP(HTTPConfig{URL: srv.URL}).Send(context.Background(), samplePayload())
	require.Error(t, err)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
	assert.Contains(t, terr.Message, "model overloaded")
}

func TestHTTPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP(HTTPConfig{URL: url, ConnectTimeout: time.Second}).Send(context.Background(), samplePayload())
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestHTTPContextCancelStopsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := NewHTTP(HTTPConfig{URL: srv.URL}).Send(ctx, samplePayload())
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", string(chunk))

	cancel()
	_, err = stream.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}
