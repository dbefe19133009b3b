// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript provides the single source of truth for conversation
// history.
//
// A Store holds an ordered sequence of turns. It has exactly one writer (the
// conversation engine) and any number of readers. Readers take snapshots,
// which are copies and never observe a mutation in progress. Every successful
// mutation notifies subscribed observers with the new snapshot, in mutation
// order.
//
// # Usage
//
//	store := transcript.NewStore()
//	unsubscribe := store.Subscribe(transcript.ObserverFunc(func(s model.Transcript) {
//	    render(s)
//	}))
//	defer unsubscribe()
//
//	id, _ := store.Append(model.NewAssistantPlaceholder())
//	store.Update(id, "Hel")
//	store.Update(id, "lo")
//	store.Finalize(id, model.StatusComplete, "")
package transcript
