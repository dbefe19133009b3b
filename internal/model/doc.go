// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for turns and transcripts.
//
// This package defines the core domain types shared by the transcript store,
// the conversation engine and the transports.
//
// # Key Types
//
//   - Turn: one user or assistant utterance with its lifecycle status
//   - Transcript: ordered, immutable-by-convention slice of turns
//   - Role: turn role enumeration (user, assistant)
//   - Status: assistant turn lifecycle (open, complete, failed)
//
// # Usage
//
// Build the outbound payload for a submission:
//
//	payload := snapshot.RequestPayload()
//	for _, m := range payload.Messages() {
//	    fmt.Println(m.Role, m.Content)
//	}
package model
