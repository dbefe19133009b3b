// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lerit/internal/model"
)

// =============================================================================
// FRAME THROTTLE
// =============================================================================

const (
	// DefaultMaxFPS caps renders when no rate is configured.
	DefaultMaxFPS = 30

	// MaxFPS is the highest accepted frame rate.
	MaxFPS = 240
)

// FrameThrottle coalesces transcript snapshots between frames.
//
// It is a transcript observer. The engine calls OnTranscriptChanged on
// every mutation, possibly hundreds of times per second; the throttle
// keeps only the latest snapshot. The Bubble Tea loop polls Flush once per
// frame tick, so the view renders at most maxFPS times per second and the
// newest snapshot always wins.
//
// OnTranscriptChanged runs while the engine holds its lock, so it only
// touches the throttle's own mutex and never blocks on the program.
type FrameThrottle struct {
	mu        sync.Mutex
	latest    model.Transcript
	dirty     bool
	updates   int
	lastFlush time.Time

	maxFPS   int
	interval time.Duration
}

// NewFrameThrottle creates a throttle capped at maxFPS frames per second.
// Out-of-range values fall back to DefaultMaxFPS.
func NewFrameThrottle(maxFPS int) *FrameThrottle {
	if maxFPS <= 0 || maxFPS > MaxFPS {
		maxFPS = DefaultMaxFPS
	}
	return &FrameThrottle{
		maxFPS:   maxFPS,
		interval: time.Second / time.Duration(maxFPS),
	}
}

// OnTranscriptChanged records snapshot as the next frame's content.
func (ft *FrameThrottle) OnTranscriptChanged(snapshot model.Transcript) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.latest = snapshot
	ft.dirty = true
	ft.updates++
}

// Flush returns the latest snapshot if one arrived since the previous
// flush and at least one frame interval has passed.
func (ft *FrameThrottle) Flush() (model.Transcript, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.dirty || time.Since(ft.lastFlush) < ft.interval {
		return nil, false
	}
	return ft.takeLocked(), true
}

// ForceFlush returns the latest pending snapshot regardless of timing.
// Use it when a request finishes so the final state is never held back.
func (ft *FrameThrottle) ForceFlush() (model.Transcript, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if !ft.dirty {
		return nil, false
	}
	return ft.takeLocked(), true
}

func (ft *FrameThrottle) takeLocked() model.Transcript {
	snap := ft.latest
	ft.latest = nil
	ft.dirty = false
	ft.updates = 0
	ft.lastFlush = time.Now()
	return snap
}

// Pending returns how many snapshots were coalesced since the last flush.
func (ft *FrameThrottle) Pending() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.updates
}

// Interval returns the minimum time between frames.
func (ft *FrameThrottle) Interval() time.Duration {
	return ft.interval
}

// MaxFPS returns the configured frame rate.
func (ft *FrameThrottle) MaxFPS() int {
	return ft.maxFPS
}

// =============================================================================
// FRAME TICK COMMAND
// =============================================================================

// frameTickCmd schedules the next FrameTickMsg one interval from now.
func frameTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return FrameTickMsg{Time: t}
	})
}
