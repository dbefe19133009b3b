// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transport"
)

func delta(content string) string {
	return fmt.Sprintf(`data: {"id":"c1","choices":[{"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", content)
}

const finishEvent = `data: {"id":"c1","choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n"

func collect(t *testing.T, s transport.ChunkStream) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		c, err := s.Next()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.Write(c)
	}
}

func streamOf(body string) *eventStream {
	return newEventStream(io.NopCloser(strings.NewReader(body)))
}

// =============================================================================
// SSE READER
// =============================================================================

func TestSSEReader_Events(t *testing.T) {
	input := ": keep-alive\n" +
		"event: message\n" +
		"data: one\n" +
		"data:two\n" +
		"\n" +
		"id: 7\n" +
		"data: last"
	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", typ)
	assert.Equal(t, "one\ntwo", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "last", string(data))

	_, _, err = r.ReadEvent()
	assert.Equal(t, io.EOF, err)
}

func TestSSEReader_CRLF(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: a\r\n\r\ndata: b\r\n\r\n"))
	_, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestSSEReader_EventTooLarge(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: " + strings.Repeat("x", MaxEventSize+1) + "\n\n"))
	_, _, err := r.ReadEvent()
	assert.ErrorIs(t, err, ErrEventTooLarge)
}

// =============================================================================
// EVENT STREAM
// =============================================================================

func TestEventStream_DeltasUntilDone(t *testing.T) {
	body := `data: {"choices":[{"delta":{"role":"assistant"},"finish_reason":null}]}` + "\n\n" +
		delta("Hel") + delta("lo!") + finishEvent + "data: [DONE]\n\n"
	got, err := collect(t, streamOf(body))
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got)
}

func TestEventStream_EOFAfterFinishIsClean(t *testing.T) {
	got, err := collect(t, streamOf(delta("ok")+finishEvent))
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestEventStream_PrematureClose(t *testing.T) {
	got, err := collect(t, streamOf(delta("par")))
	assert.Equal(t, "par", got)
	require.Error(t, err)
	assert.True(t, transport.IsTransportError(err))
}

func TestEventStream_InBandError(t *testing.T) {
	body := delta("a") + `data: {"error":{"message":"context length exceeded","type":"invalid_request_error"}}` + "\n\n"
	got, err := collect(t, streamOf(body))
	assert.Equal(t, "a", got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context length exceeded")
}

func TestEventStream_SkipsMalformedChunks(t *testing.T) {
	got, err := collect(t, streamOf("data: {oops\n\n"+delta("fine")+"data: [DONE]\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func TestTransport_Send(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range []string{delta("Hello"), delta("!"), finishEvent, "data: [DONE]\n\n"} {
			_, _ = io.WriteString(w, ev)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	tr := NewTransport(Config{BaseURL: srv.URL + "/v1/", Model: "local"})
	payload := model.Transcript{
		model.NewUserTurn("Hi"),
	}
	stream, err := tr.Send(context.Background(), payload)
	require.NoError(t, err)
	defer stream.Close()

	text, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
	assert.Equal(t, "local", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, []ChatMessage{{Role: "user", Content: "Hi"}}, got.Messages)
}

func TestTransport_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model"}}`)
	}))
	defer srv.Close()

	_, err := NewTransport(Config{BaseURL: srv.URL}).Send(context.Background(), model.Transcript{model.NewUserTurn("Hi")})
	var terr *transport.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
	assert.Contains(t, terr.Message, "bad model")
}

func TestTransport_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"qwen2.5-7b-instruct","owned_by":"llamacpp"}]}`)
	}))
	defer srv.Close()

	tr := NewTransport(Config{BaseURL: srv.URL + "/v1"})
	models, err := tr.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "qwen2.5-7b-instruct", models[0].ID)
	assert.NoError(t, tr.Ping(context.Background()))
}
