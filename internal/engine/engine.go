// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jeranaias/lerit/internal/decode"
	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transcript"
	"github.com/jeranaias/lerit/internal/transport"
)

// =============================================================================
// STATE
// =============================================================================

// State is the engine's position in the submit cycle.
type State int32

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BusyPolicy decides what Submit does while a request is in flight.
type BusyPolicy int

const (
	// BusySupersede cancels the running request and starts the new one.
	BusySupersede BusyPolicy = iota
	// BusyReject refuses the new submission with ErrBusy.
	BusyReject
)

// String returns the config spelling of the policy.
func (p BusyPolicy) String() string {
	if p == BusyReject {
		return "reject"
	}
	return "supersede"
}

// ParseBusyPolicy parses "supersede" or "reject". The empty string selects
// BusySupersede.
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "supersede":
		return BusySupersede, nil
	case "reject":
		return BusyReject, nil
	default:
		return BusySupersede, fmt.Errorf("engine: unknown busy policy %q", s)
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is one accepted submission.
type Request struct {
	generation uint64
	userTurnID model.TurnID
	turnID     model.TurnID
	acc        *Accumulator
	log        zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	result model.Turn
	err    error
}

// Generation returns the request's generation number.
func (r *Request) Generation() uint64 { return r.generation }

// UserTurnID returns the id of the user turn this request answers.
func (r *Request) UserTurnID() model.TurnID { return r.userTurnID }

// TurnID returns the id of the assistant turn being streamed.
func (r *Request) TurnID() model.TurnID { return r.turnID }

// Done is closed once the assistant turn is finalized.
func (r *Request) Done() <-chan struct{} { return r.done }

// Result waits for the request to finish and returns the finalized turn.
// The error is nil for a complete turn and the cause for a failed one.
func (r *Request) Result() (model.Turn, error) {
	<-r.done
	return r.result, r.err
}

// Wait is like Result but gives up when ctx is done.
func (r *Request) Wait(ctx context.Context) (model.Turn, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return model.Turn{}, ctx.Err()
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default is a disabled logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithBusyPolicy sets the policy applied to Submit while busy.
func WithBusyPolicy(p BusyPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithStore makes the engine write into an existing store.
func WithStore(s *transcript.Store) Option {
	return func(e *Engine) { e.store = s }
}

// Engine coordinates the store, decoder and transport for one conversation.
type Engine struct {
	transport transport.Transport
	store     *transcript.Store
	policy    BusyPolicy
	log       zerolog.Logger

	// mu guards the fields below and serializes every store mutation the
	// engine makes.
	mu         sync.Mutex
	generation uint64
	active     *Request
	closed     bool

	state atomic.Int32
	wg    sync.WaitGroup
}

// New creates an idle engine that talks to t.
func New(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		transport: t,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = transcript.NewStore()
	}
	return e
}

// State returns the current state. It is safe to call from observers.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Busy reports whether a request is in flight.
func (e *Engine) Busy() bool {
	return e.State() != StateIdle
}

// Policy returns the configured busy policy.
func (e *Engine) Policy() BusyPolicy {
	return e.policy
}

// Store returns the underlying transcript store.
func (e *Engine) Store() *transcript.Store {
	return e.store
}

// Snapshot returns a copy of the transcript.
func (e *Engine) Snapshot() model.Transcript {
	return e.store.Snapshot()
}

// Subscribe registers a transcript observer. Observers are called with the
// engine locked and must not call any Engine method.
func (e *Engine) Subscribe(obs transcript.Observer) (unsubscribe func()) {
	return e.store.Subscribe(obs)
}

// Submit appends a user turn and starts streaming the reply. The request
// runs until it completes, fails, is cancelled, or ctx is done.
func (e *Engine) Submit(ctx context.Context, text string) (*Request, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if prev := e.active; prev != nil {
		if e.policy == BusyReject {
			prev.log.Debug().Msg("submit rejected while busy")
			return nil, ErrBusy
		}
		prev.log.Info().Msg("superseding in-flight response")
		e.abortLocked(prev)
	}

	userID, err := e.store.Append(model.NewUserTurn(text))
	if err != nil {
		e.log.Error().Err(err).Msg("append user turn")
		return nil, err
	}
	turnID, err := e.store.Append(model.NewAssistantPlaceholder())
	if err != nil {
		e.log.Error().Err(err).Msg("append assistant placeholder")
		return nil, err
	}

	e.generation++
	reqCtx, cancel := context.WithCancel(ctx)
	req := &Request{
		generation: e.generation,
		userTurnID: userID,
		turnID:     turnID,
		acc:        NewAccumulator(e.store, turnID),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	req.log = e.log.With().
		Uint64("generation", req.generation).
		Str("turn_id", string(turnID)).
		Logger()
	e.active = req
	e.state.Store(int32(StateSubmitting))

	payload := e.store.Snapshot().RequestPayload()
	req.log.Info().Int("turns", len(payload)).Msg("submitting")

	e.wg.Add(1)
	go e.run(reqCtx, req, payload)
	return req, nil
}

// Cancel stops the in-flight request, if any, and finalizes its turn as
// failed with the partial content kept. It reports whether a request was
// cancelled.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	req := e.active
	if req == nil {
		return false
	}
	req.log.Info().Msg("cancelling response")
	e.abortLocked(req)
	return true
}

// Wait blocks until every request goroutine has exited or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight request and waits for its goroutine to exit.
// Submit fails with ErrClosed afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	if req := e.active; req != nil {
		e.abortLocked(req)
	}
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

func (e *Engine) run(ctx context.Context, req *Request, payload model.Transcript) {
	defer e.wg.Done()
	defer req.cancel()

	stream, err := e.transport.Send(ctx, payload)
	if err != nil {
		e.fail(ctx, req, err)
		return
	}
	defer stream.Close()

	// Next may block in a read; closing the stream is what unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	if !e.streaming(req) {
		return
	}

	dec := decode.NewDecoder()
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.fail(ctx, req, err)
			return
		}

		frags, err := dec.Feed(chunk)
		if len(frags) > 0 && !e.apply(req, frags) {
			return
		}
		if err != nil {
			e.fail(ctx, req, err)
			return
		}
	}

	frags, err := dec.Finish()
	if len(frags) > 0 && !e.apply(req, frags) {
		return
	}
	if err != nil {
		e.fail(ctx, req, err)
		return
	}
	e.complete(req)
}

// currentLocked reports whether req is still the active generation.
func (e *Engine) currentLocked(req *Request) bool {
	return e.active == req && e.generation == req.generation
}

func (e *Engine) streaming(req *Request) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(req) {
		req.log.Debug().Msg("stale stream opened, dropping")
		return false
	}
	e.state.Store(int32(StateStreaming))
	req.log.Debug().Msg("stream open")
	return true
}

func (e *Engine) apply(req *Request, frags []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(req) {
		req.log.Debug().Int("fragments", len(frags)).Msg("stale fragments dropped")
		return false
	}
	if _, err := req.acc.OnFragments(frags...); err != nil {
		req.log.Error().Err(err).Msg("store rejected fragment")
		e.finishLocked(req, err, req.acc.OnError)
		return false
	}
	return true
}

func (e *Engine) complete(req *Request) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(req) {
		req.log.Debug().Msg("stale completion dropped")
		return
	}
	e.finishLocked(req, nil, func(error) (model.Turn, error) { return req.acc.OnComplete() })
}

func (e *Engine) fail(ctx context.Context, req *Request, err error) {
	if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(req) {
		req.log.Debug().Err(err).Msg("stale failure dropped")
		return
	}
	e.finishLocked(req, err, req.acc.OnError)
}

// abortLocked cancels req and finalizes its turn as cancelled. Caller holds
// mu and req must be active.
func (e *Engine) abortLocked(req *Request) {
	req.cancel()
	e.finishLocked(req, ErrCancelled, req.acc.OnError)
}

// finishLocked finalizes the active request with cause (nil on success),
// publishes the result and returns the engine to Idle.
func (e *Engine) finishLocked(req *Request, cause error, finalize func(error) (model.Turn, error)) {
	turn, err := finalize(cause)
	if err != nil {
		req.log.Error().Err(err).Msg("finalize turn")
		if t, ok := e.store.Get(req.turnID); ok {
			turn = t
		}
	}

	e.active = nil
	e.state.Store(int32(StateIdle))
	req.result = turn
	req.err = cause
	close(req.done)

	if cause == nil {
		req.log.Info().Int("bytes", len(turn.Content)).Msg("response complete")
	} else {
		req.log.Warn().Err(cause).Int("bytes", len(turn.Content)).Msg("response failed")
	}
}
