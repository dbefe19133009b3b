// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decode

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrMalformedStream reports bytes that do not decode as UTF-8.
var ErrMalformedStream = errors.New("malformed stream")

// Decoder converts byte chunks into UTF-8 text fragments, buffering any
// incomplete trailing sequence between calls.
//
// A Decoder is not safe for concurrent use; it belongs to one stream.
type Decoder struct {
	validator transform.Transformer
	pending   []byte
	offset    int64
	finished  bool
}

// NewDecoder creates a UTF-8 stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{validator: encoding.UTF8Validator}
}

// Feed decodes chunk, prefixed by any bytes held back from the previous
// call. It returns zero or one fragments; an empty result means the chunk
// only extended a pending multi-byte sequence. On ErrMalformedStream the
// valid text before the bad byte is still returned.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	if d.finished {
		return nil, fmt.Errorf("%w: feed after finish", ErrMalformedStream)
	}
	if len(chunk) == 0 {
		return nil, nil
	}

	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	text, rest, err := d.transform(src, false)
	if err != nil {
		return fragments(text), err
	}
	if len(rest) > 0 {
		d.pending = append([]byte(nil), rest...)
	}
	return fragments(text), nil
}

// Finish flushes the decoder at end of stream. Leftover bytes that do not
// form a complete character are an ErrMalformedStream; any valid text
// before them is returned alongside.
func (d *Decoder) Finish() ([]string, error) {
	if d.finished {
		return nil, nil
	}
	d.finished = true
	if len(d.pending) == 0 {
		return nil, nil
	}

	src := d.pending
	d.pending = nil
	text, _, err := d.transform(src, true)
	return fragments(text), err
}

func fragments(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

// Pending returns the number of bytes held back awaiting continuation.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// transform validates src and returns the decoded prefix plus any trailing
// bytes that need more input. The prefix is returned with errors too.
func (d *Decoder) transform(src []byte, atEOF bool) (string, []byte, error) {
	d.validator.Reset()
	dst := make([]byte, len(src))
	nDst, nSrc, err := d.validator.Transform(dst, src, atEOF)

	switch {
	case err == nil:
	case errors.Is(err, transform.ErrShortSrc) && !atEOF:
		// Incomplete trailing sequence: keep it for the next chunk.
	case errors.Is(err, encoding.ErrInvalidUTF8):
		return string(dst[:nDst]), nil, fmt.Errorf("%w: invalid UTF-8 at byte %d", ErrMalformedStream, d.offset+int64(nSrc))
	default:
		return string(dst[:nDst]), nil, fmt.Errorf("%w: %v", ErrMalformedStream, err)
	}

	d.offset += int64(nSrc)
	return string(dst[:nDst]), src[nSrc:], nil
}
