// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"strings"

	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/transcript"
)

// Accumulator applies decoded fragments to one open assistant turn.
//
// Every method returns the turn as it is after the call, read back from the
// store. The Accumulator keeps no copy of the content itself.
type Accumulator struct {
	store  *transcript.Store
	turnID model.TurnID
}

// NewAccumulator binds an accumulator to the open turn id in store.
func NewAccumulator(store *transcript.Store, turnID model.TurnID) *Accumulator {
	return &Accumulator{store: store, turnID: turnID}
}

// TurnID returns the turn this accumulator writes to.
func (a *Accumulator) TurnID() model.TurnID {
	return a.turnID
}

// OnFragment appends one fragment.
func (a *Accumulator) OnFragment(fragment string) (model.Turn, error) {
	return a.store.Update(a.turnID, fragment)
}

// OnFragments appends the fragments of one chunk as a single update. With no
// fragments it returns the current turn without notifying observers.
func (a *Accumulator) OnFragments(fragments ...string) (model.Turn, error) {
	switch len(fragments) {
	case 0:
		turn, ok := a.store.Get(a.turnID)
		if !ok {
			return model.Turn{}, transcript.ErrNotFound
		}
		return turn, nil
	case 1:
		return a.OnFragment(fragments[0])
	default:
		return a.OnFragment(strings.Join(fragments, ""))
	}
}

// OnComplete finalizes the turn as complete.
func (a *Accumulator) OnComplete() (model.Turn, error) {
	return a.store.Finalize(a.turnID, model.StatusComplete, "")
}

// OnError finalizes the turn as failed, keeping whatever content arrived.
func (a *Accumulator) OnError(err error) (model.Turn, error) {
	return a.store.Finalize(a.turnID, model.StatusFailed, FailureMessage(err))
}
