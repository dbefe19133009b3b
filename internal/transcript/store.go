// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/lerit/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// Store contract violations. These indicate a bug in the caller and should
// not occur in correct engine usage.
var (
	ErrInvalidState      = errors.New("transcript: an assistant turn is already open")
	ErrInvalidTransition = errors.New("transcript: turn is not open")
	ErrNotFound          = errors.New("transcript: turn not found")
)

// =============================================================================
// OBSERVERS
// =============================================================================

// Observer receives the transcript after every successful mutation.
//
// OnTranscriptChanged runs synchronously on the mutating goroutine while the
// store holds its notification lock, and while the engine holds its own
// lock when the engine is the writer. It may read the store. It must not
// call Subscribe or an unsubscribe func, mutate the store, or call back
// into the engine (Submit, Cancel, Close); each of those deadlocks. It must
// not block either. Hand the snapshot to another goroutine for slow work.
type Observer interface {
	OnTranscriptChanged(snapshot model.Transcript)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(snapshot model.Transcript)

// OnTranscriptChanged calls f(snapshot).
func (f ObserverFunc) OnTranscriptChanged(snapshot model.Transcript) {
	f(snapshot)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the ordered, append-only sequence of turns.
//
// The Store is safe for concurrent use. Mutations are atomic from a reader's
// perspective and observers are notified one mutation at a time.
type Store struct {
	mu     sync.RWMutex
	turns  []model.Turn
	index  map[model.TurnID]int
	openID model.TurnID

	// notifyMu serializes observer delivery. It is acquired before mu is
	// released so snapshots arrive in mutation order.
	notifyMu  sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index:     make(map[model.TurnID]int),
		observers: make(map[int]Observer),
	}
}

// Append adds a turn at the end of the transcript and returns its id.
// A turn without an id is assigned one. Appending while an assistant turn is
// open fails with ErrInvalidState.
func (s *Store) Append(turn model.Turn) (model.TurnID, error) {
	s.mu.Lock()
	if s.openID != "" {
		s.mu.Unlock()
		return "", ErrInvalidState
	}
	if !turn.Role.Valid() {
		s.mu.Unlock()
		return "", fmt.Errorf("transcript: invalid role %q", turn.Role)
	}
	if turn.ID == "" {
		turn.ID = model.NewTurnID()
	}
	if _, exists := s.index[turn.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("transcript: duplicate turn id %s", turn.ID)
	}
	if turn.Status == "" {
		if turn.Role == model.RoleAssistant {
			turn.Status = model.StatusOpen
		} else {
			turn.Status = model.StatusComplete
		}
	}
	if turn.Role == model.RoleUser && turn.Status != model.StatusComplete {
		s.mu.Unlock()
		return "", fmt.Errorf("transcript: user turn must be complete, got %s", turn.Status)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	s.index[turn.ID] = len(s.turns)
	s.turns = append(s.turns, turn)
	if turn.IsOpen() {
		s.openID = turn.ID
	}
	s.publishLocked()
	return turn.ID, nil
}

// Update appends delta to the content of an open turn and returns the new
// snapshot of that turn.
func (s *Store) Update(id model.TurnID, delta string) (model.Turn, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return model.Turn{}, ErrNotFound
	}
	turn := s.turns[i]
	if !turn.IsOpen() {
		s.mu.Unlock()
		return turn, ErrInvalidTransition
	}
	turn.Content += delta
	s.turns[i] = turn
	s.publishLocked()
	return turn, nil
}

// Finalize moves an open turn to its terminal status. Outcome must be
// StatusComplete or StatusFailed; errorMessage is recorded for failed turns.
// Any call after the first fails with ErrInvalidTransition.
func (s *Store) Finalize(id model.TurnID, outcome model.Status, errorMessage string) (model.Turn, error) {
	if !outcome.Terminal() {
		return model.Turn{}, fmt.Errorf("transcript: %q is not a terminal status", outcome)
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return model.Turn{}, ErrNotFound
	}
	turn := s.turns[i]
	if !turn.IsOpen() {
		s.mu.Unlock()
		return turn, ErrInvalidTransition
	}
	turn.Status = outcome
	turn.FinishedAt = time.Now()
	if outcome == model.StatusFailed {
		turn.Error = errorMessage
	}
	s.turns[i] = turn
	if s.openID == id {
		s.openID = ""
	}
	s.publishLocked()
	return turn, nil
}

// Snapshot returns a copy of the transcript.
func (s *Store) Snapshot() model.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Transcript(s.turns).Clone()
}

// Get returns a snapshot of a single turn.
func (s *Store) Get(id model.TurnID) (model.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Turn{}, false
	}
	return s.turns[i], true
}

// OpenTurn returns the currently open assistant turn, if any.
func (s *Store) OpenTurn() (model.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.openID == "" {
		return model.Turn{}, false
	}
	return s.turns[s.index[s.openID]], true
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Subscribe registers an observer and returns a function that removes it.
// Neither Subscribe nor the returned func may be called from an observer.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.notifyMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = obs
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.observers, id)
			s.notifyMu.Unlock()
		})
	}
}

// publishLocked snapshots the turns, releases mu and delivers the snapshot
// to every observer. Caller must hold mu; it is released on return.
// Observers run without mu held, so they may read the store, but they must
// not mutate it.
func (s *Store) publishLocked() {
	snap := model.Transcript(s.turns).Clone()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, obs := range s.observers {
		obs.OnTranscriptChanged(snap)
	}
}
