// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle state of a turn.
type Status string

const (
	StatusOpen     Status = "open"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// =============================================================================
// TURN TYPE
// =============================================================================

// TurnID identifies a turn inside a transcript. It is stable for the
// lifetime of the turn.
type TurnID string

// NewTurnID returns a fresh random turn identifier.
func NewTurnID() TurnID {
	return TurnID("turn_" + uuid.NewString())
}

// String returns the id as a string.
func (id TurnID) String() string {
	return string(id)
}

// Turn is one utterance in the conversation.
//
// Turn is a value type: every copy handed out by the transcript store is a
// snapshot and never changes underneath its holder.
type Turn struct {
	ID      TurnID `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Status  Status `json:"status"`

	// Error is the human-readable failure message of a failed turn.
	// Content keeps whatever partial text arrived before the failure.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewUserTurn creates a user turn. User turns are complete on creation.
func NewUserTurn(content string) Turn {
	now := time.Now()
	return Turn{
		ID:         NewTurnID(),
		Role:       RoleUser,
		Content:    content,
		Status:     StatusComplete,
		CreatedAt:  now,
		FinishedAt: now,
	}
}

// NewAssistantPlaceholder creates the empty, open assistant turn that
// receives a streamed reply.
func NewAssistantPlaceholder() Turn {
	return Turn{
		ID:        NewTurnID(),
		Role:      RoleAssistant,
		Status:    StatusOpen,
		CreatedAt: time.Now(),
	}
}

// IsOpen reports whether the turn is still receiving content.
func (t Turn) IsOpen() bool {
	return t.Status == StatusOpen
}

// IsFailed reports whether the turn ended in failure.
func (t Turn) IsFailed() bool {
	return t.Status == StatusFailed
}

// IsEmpty returns true if the turn has no content.
func (t Turn) IsEmpty() bool {
	return len(t.Content) == 0
}

// Preview returns a truncated preview of the turn content.
// Uses rune-based truncation to handle Unicode correctly.
func (t Turn) Preview(maxLen int) string {
	runes := []rune(t.Content)
	if len(runes) <= maxLen {
		return t.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Duration returns how long the turn took to finish, or zero while open.
func (t Turn) Duration() time.Duration {
	if t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.CreatedAt)
}
