// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/model"
)

// FrameTickMsg asks the model to render the latest throttled snapshot.
type FrameTickMsg struct {
	Time time.Time
}

// RequestDoneMsg reports that a submitted request reached a terminal state.
type RequestDoneMsg struct {
	Request *engine.Request
	Turn    model.Turn
	Err     error
}

// waitForRequest blocks in a command goroutine until req is finalized.
func waitForRequest(req *engine.Request) tea.Cmd {
	return func() tea.Msg {
		turn, err := req.Result()
		return RequestDoneMsg{Request: req, Turn: turn, Err: err}
	}
}
