// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"

	"github.com/jeranaias/lerit/internal/decode"
)

var (
	// ErrEmptyInput is returned by Submit for empty or whitespace-only text.
	ErrEmptyInput = errors.New("engine: empty input")

	// ErrBusy is returned by Submit under BusyReject while a request runs.
	ErrBusy = errors.New("engine: a response is already streaming")

	// ErrCancelled terminates a request stopped by Cancel, a superseding
	// Submit, Close, or its own context.
	ErrCancelled = errors.New("engine: response cancelled")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("engine: closed")
)

// User-visible failure messages recorded on failed turns.
const (
	MessageCancelled = "Response cancelled."
	MessageMalformed = "Sorry, the response could not be decoded. Please try again."
	MessageGeneric   = "Sorry, something went wrong. Please try again."
)

// FailureMessage maps a request error to the text shown on a failed turn.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return MessageCancelled
	case errors.Is(err, decode.ErrMalformedStream):
		return MessageMalformed
	default:
		return MessageGeneric
	}
}
