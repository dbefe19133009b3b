// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine runs the submit, stream and finalize cycle of a
// conversation.
//
// The Engine owns a transcript.Store and a transport.Transport. Submit
// appends the user turn and an open assistant placeholder, then a request
// goroutine sends the payload and pulls chunks from the response. Chunks are
// decoded by a decode.Decoder and applied through an Accumulator until the
// stream ends, fails or is cancelled.
//
// # State Machine
//
//	Idle --Submit--> Submitting --stream open--> Streaming --end|error|cancel--> Idle
//
// A failed turn always returns the engine to Idle so the user can retry.
//
// # Generations
//
// Every accepted Submit starts a new generation. Callbacks from a request
// whose generation is no longer current are dropped, so a cancelled or
// superseded stream can never write into the transcript after it was
// finalized.
//
// # Usage
//
//	eng := engine.New(transport.NewHTTP(transport.HTTPConfig{}),
//	    engine.WithLogger(log.Logger))
//	defer eng.Close()
//
//	eng.Subscribe(transcript.ObserverFunc(func(t model.Transcript) {
//	    render(t)
//	}))
//
//	req, err := eng.Submit(ctx, "Hi")
//	if err != nil {
//	    return err
//	}
//	<-req.Done()
//	turn, err := req.Result()
//
// Observers are called with the engine lock held. They may read State and
// Snapshot but must not call Submit, Cancel or Close synchronously.
package engine
