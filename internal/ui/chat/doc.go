// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for lerit.
//
// The view is a transcript observer and nothing more: the engine owns the
// transcript, and the view renders snapshots. Snapshots reach the program
// through a FrameThrottle polled by a frame tick, which caps renders at the
// configured frame rate no matter how fast fragments arrive.
//
// Keys: Enter sends, Esc stops the streaming response, PgUp/PgDn scroll and
// Ctrl+C quits.
package chat
