// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered history of turns. Insertion order is
// conversation order; a transcript is never reordered or deduplicated.
type Transcript []Turn

// Clone returns an independent copy of the transcript.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Last returns the most recent turn, or false if the transcript is empty.
func (t Transcript) Last() (Turn, bool) {
	if len(t) == 0 {
		return Turn{}, false
	}
	return t[len(t)-1], true
}

// Find returns the turn with the given id.
func (t Transcript) Find(id TurnID) (Turn, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].ID == id {
			return t[i], true
		}
	}
	return Turn{}, false
}

// OpenTurn returns the assistant turn that is still streaming, if any.
func (t Transcript) OpenTurn() (Turn, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].IsOpen() {
			return t[i], true
		}
	}
	return Turn{}, false
}

// LastUserTurn returns the most recent user turn.
func (t Transcript) LastUserTurn() (Turn, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == RoleUser {
			return t[i], true
		}
	}
	return Turn{}, false
}

// =============================================================================
// WIRE CONVERSION
// =============================================================================

// Message is the role/content pair sent to a completion service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestPayload returns the transcript as it should be sent upstream.
//
// Open turns are never sent. Failed assistant turns are sent with their
// partial content when they have any and omitted otherwise. Order and role
// labels are preserved verbatim.
func (t Transcript) RequestPayload() Transcript {
	out := make(Transcript, 0, len(t))
	for _, turn := range t {
		switch {
		case turn.IsOpen():
			continue
		case turn.IsFailed() && turn.IsEmpty():
			continue
		}
		out = append(out, turn)
	}
	return out
}

// Messages converts the transcript into role/content pairs.
func (t Transcript) Messages() []Message {
	messages := make([]Message, 0, len(t))
	for _, turn := range t {
		messages = append(messages, Message{
			Role:    turn.Role.String(),
			Content: turn.Content,
		})
	}
	return messages
}
