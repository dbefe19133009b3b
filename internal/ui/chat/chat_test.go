// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transport"
	"github.com/jeranaias/lerit/internal/ui/styles"
)

// blockingStream yields nothing until closed.
type blockingStream struct {
	once   sync.Once
	closed chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{closed: make(chan struct{})}
}

func (s *blockingStream) Next() ([]byte, error) {
	<-s.closed
	return nil, io.ErrClosedPipe
}

func (s *blockingStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func replyWith(chunks ...string) transport.Transport {
	return transport.Func(func(ctx context.Context, _ model.Transcript) (transport.ChunkStream, error) {
		return transport.NewStringStream(chunks...), nil
	})
}

func newTestModel(t *testing.T, tr transport.Transport, opts ...engine.Option) Model {
	t.Helper()
	eng := engine.New(tr, opts...)
	t.Cleanup(func() { _ = eng.Close() })

	m := New(eng, Options{MaxFPS: 60, Theme: styles.NewTheme(styles.ModeDark)})
	t.Cleanup(m.Close)
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func send(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

// finish waits for the active request and delivers its completion.
func finish(t *testing.T, m Model) Model {
	t.Helper()
	require.NotNil(t, m.active)
	req := m.active
	turn, err := req.Result()
	return update(t, m, RequestDoneMsg{Request: req, Turn: turn, Err: err})
}

// =============================================================================
// FRAME THROTTLE TESTS
// =============================================================================

func TestFrameThrottle_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMaxFPS, NewFrameThrottle(0).MaxFPS())
	assert.Equal(t, DefaultMaxFPS, NewFrameThrottle(MaxFPS+1).MaxFPS())

	ft := NewFrameThrottle(50)
	assert.Equal(t, 50, ft.MaxFPS())
	assert.Equal(t, 20*time.Millisecond, ft.Interval())
}

func TestFrameThrottle_LatestSnapshotWins(t *testing.T) {
	ft := NewFrameThrottle(1)

	_, ok := ft.Flush()
	assert.False(t, ok, "nothing to flush")

	first := model.Transcript{model.NewUserTurn("a")}
	second := model.Transcript{model.NewUserTurn("a"), model.NewAssistantPlaceholder()}
	ft.OnTranscriptChanged(first)
	ft.OnTranscriptChanged(second)
	assert.Equal(t, 2, ft.Pending())

	snap, ok := ft.Flush()
	require.True(t, ok)
	assert.Equal(t, second, snap)
	assert.Equal(t, 0, ft.Pending())

	// Inside the one-second interval only ForceFlush delivers.
	ft.OnTranscriptChanged(first)
	_, ok = ft.Flush()
	assert.False(t, ok)
	snap, ok = ft.ForceFlush()
	require.True(t, ok)
	assert.Equal(t, first, snap)

	_, ok = ft.ForceFlush()
	assert.False(t, ok)
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestModel_SubmitStreamsReply(t *testing.T) {
	m := newTestModel(t, replyWith("Hel", "lo!"))

	m = send(t, m, "Hi")
	require.NotNil(t, m.active)
	assert.True(t, m.ticking)
	assert.Empty(t, m.input.Value())

	m = finish(t, m)
	assert.Nil(t, m.active)
	assert.Empty(t, m.status)
	require.Len(t, m.transcript, 2)
	assert.Equal(t, "Hello!", m.transcript[1].Content)

	view := m.View()
	assert.Contains(t, view, "Hi")
	assert.Contains(t, view, "Hello!")
}

func TestModel_EmptySubmitIgnored(t *testing.T) {
	m := newTestModel(t, replyWith("x"))
	m = send(t, m, "   ")
	assert.Nil(t, m.active)
	assert.Empty(t, m.engine.Snapshot())
}

func TestModel_FailedTurnShowsPartialAndApology(t *testing.T) {
	tr := transport.Func(func(ctx context.Context, _ model.Transcript) (transport.ChunkStream, error) {
		s := transport.NewStringStream("par")
		s.Err = transport.NewError(0, "stream interrupted", errors.New("reset"))
		return s, nil
	})
	m := newTestModel(t, tr)

	m = finish(t, send(t, m, "Hi"))
	assert.Equal(t, engine.MessageGeneric, m.status)

	view := m.View()
	assert.Contains(t, view, "par")
	assert.Contains(t, view, engine.MessageGeneric)
}

func TestModel_EscCancelsStreaming(t *testing.T) {
	stream := newBlockingStream()
	tr := transport.Func(func(ctx context.Context, _ model.Transcript) (transport.ChunkStream, error) {
		return stream, nil
	})
	m := newTestModel(t, tr)

	m = send(t, m, "Hi")
	require.NotNil(t, m.active)
	req := m.active

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, engine.MessageCancelled, m.status)
	require.Len(t, m.transcript, 2)
	assert.True(t, m.transcript[1].IsFailed())
	assert.Contains(t, m.View(), engine.MessageCancelled)

	_, err := req.Result()
	assert.ErrorIs(t, err, engine.ErrCancelled)
	m = finish(t, m)
	assert.Nil(t, m.active)
}

func TestModel_BusyRejectDisablesInput(t *testing.T) {
	stream := newBlockingStream()
	tr := transport.Func(func(ctx context.Context, _ model.Transcript) (transport.ChunkStream, error) {
		return stream, nil
	})
	m := newTestModel(t, tr, engine.WithBusyPolicy(engine.BusyReject))

	m = send(t, m, "Hi")
	require.NotNil(t, m.active)
	assert.False(t, m.input.Focused())

	// Enter while disabled does nothing.
	first := m.active
	m = send(t, m, "again")
	assert.Same(t, first, m.active)
	assert.Len(t, m.engine.Snapshot(), 2)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = finish(t, m)
	assert.True(t, m.input.Focused())
}

func TestModel_SupersededCompletionKeepsNewRequest(t *testing.T) {
	var mu sync.Mutex
	var streams []*blockingStream
	tr := transport.Func(func(ctx context.Context, _ model.Transcript) (transport.ChunkStream, error) {
		mu.Lock()
		defer mu.Unlock()
		s := newBlockingStream()
		streams = append(streams, s)
		return s, nil
	})
	m := newTestModel(t, tr)

	m = send(t, m, "one")
	old := m.active
	m = send(t, m, "two")
	require.NotSame(t, old, m.active)

	turn, err := old.Result()
	m = update(t, m, RequestDoneMsg{Request: old, Turn: turn, Err: err})
	assert.NotNil(t, m.active, "stale completion must not clear the new request")
	assert.Len(t, m.transcript, 4)
}

func TestModel_FrameTickStopsWhenIdle(t *testing.T) {
	m := newTestModel(t, replyWith("x"))
	m.ticking = true

	next, cmd := m.Update(FrameTickMsg{Time: time.Now()})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).ticking)
}

func TestModel_QuitKey(t *testing.T) {
	m := newTestModel(t, replyWith("x"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestMarkdownRenderer(t *testing.T) {
	mr := NewMarkdownRenderer("dark")
	out := mr.Render("some **bold** text", 40)
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
}
