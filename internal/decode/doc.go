// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package decode turns a stream of raw byte chunks into text fragments.
//
// Network chunk boundaries do not respect character boundaries: a multi-byte
// UTF-8 character can arrive split across two reads. The Decoder holds back
// an incomplete trailing sequence and prepends it to the next chunk, so a
// split never produces replacement characters. Bytes that can never form a
// valid character, mid-stream or left over at the end, are reported as
// ErrMalformedStream instead of being dropped.
//
// # Usage
//
//	dec := decode.NewDecoder()
//	for chunk := range chunks {
//	    frags, err := dec.Feed(chunk)
//	    ...
//	}
//	tail, err := dec.Finish()
package decode
