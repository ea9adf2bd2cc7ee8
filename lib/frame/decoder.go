// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"fmt"
	"slices"
)

// ErrFramingViolation matches every [ViolationError] via errors.Is.
var ErrFramingViolation = errors.New("frame: framing violation")

// ViolationError reports malformed or excess bytes on the stream.
// The connection that produced it cannot be resynchronized.
type ViolationError struct {
	// Reason describes what was wrong with the stream.
	Reason string

	// Excess is the number of bytes received beyond the declared
	// frame length. Zero for header errors.
	Excess int
}

func (e *ViolationError) Error() string {
	return "frame: " + e.Reason
}

func (e *ViolationError) Unwrap() error {
	return ErrFramingViolation
}

// State is the decoder's position within the current frame.
type State int

const (
	// AwaitingHeader: fewer than HeaderLen bytes are buffered.
	AwaitingHeader State = iota

	// AwaitingBody: the header has been parsed and Expected reports
	// the total frame length; the body is incomplete.
	AwaitingBody

	// Violated: a ViolationError was returned. Every later Feed
	// returns the same error until Reset.
	Violated
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting-header"
	case AwaitingBody:
		return "awaiting-body"
	case Violated:
		return "violated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultMaxBody is the declared-length limit used when NewDecoder is
// given zero.
const DefaultMaxBody = 64 << 20

// Decoder reassembles one request frame at a time from arbitrarily
// segmented input. The zero value is not usable; call NewDecoder.
//
// A Decoder is owned by exactly one connection and is not safe for
// concurrent use.
type Decoder struct {
	maxBody  int
	state    State
	buffer   []byte
	expected int
	err      error
}

// NewDecoder returns a decoder in AwaitingHeader. Declared lengths
// above maxBody are violations; zero selects DefaultMaxBody.
func NewDecoder(maxBody int) *Decoder {
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	if maxBody > MaxLength {
		maxBody = MaxLength
	}
	return &Decoder{maxBody: maxBody}
}

// State reports the decoder's current state.
func (d *Decoder) State() State { return d.state }

// Buffered reports how many bytes of the current frame are held.
func (d *Decoder) Buffered() int { return len(d.buffer) }

// Expected reports the total length (header plus body) of the frame
// being assembled, or zero before the header has been parsed.
func (d *Decoder) Expected() int { return d.expected }

// Feed appends p to the accumulation buffer and advances the state
// machine. It returns a non-nil payload exactly when p completes a
// frame; the decoder is then back in AwaitingHeader with an empty
// buffer and the caller owns the payload.
//
// If the buffer would hold more bytes than the declared frame, Feed
// returns a *ViolationError and no payload. The header is parsed once
// per frame, on the Feed that first brings the buffer to HeaderLen
// bytes.
func (d *Decoder) Feed(p []byte) ([]byte, error) {
	if d.state == Violated {
		return nil, d.err
	}
	d.buffer = append(d.buffer, p...)

	if d.state == AwaitingHeader {
		if len(d.buffer) < HeaderLen {
			return nil, nil
		}
		length, err := parseLength(d.buffer[:HeaderLen])
		if err != nil {
			return nil, d.fail(err)
		}
		if length > d.maxBody {
			return nil, d.fail(&ViolationError{
				Reason: fmt.Sprintf("declared length %d exceeds limit %d", length, d.maxBody),
			})
		}
		d.expected = HeaderLen + length
		d.state = AwaitingBody
		if missing := d.expected - len(d.buffer); missing > 0 {
			d.buffer = slices.Grow(d.buffer, missing)
		}
	}

	switch {
	case len(d.buffer) < d.expected:
		return nil, nil
	case len(d.buffer) > d.expected:
		excess := len(d.buffer) - d.expected
		return nil, d.fail(&ViolationError{
			Reason: fmt.Sprintf("%d bytes beyond declared frame length %d", excess, d.expected),
			Excess: excess,
		})
	}

	payload := d.buffer[HeaderLen:d.expected:d.expected]
	d.buffer = nil
	d.expected = 0
	d.state = AwaitingHeader
	return payload, nil
}

// Reset discards any partial frame and returns the decoder to the
// state NewDecoder produced. It also clears a violation.
func (d *Decoder) Reset() {
	d.buffer = nil
	d.expected = 0
	d.err = nil
	d.state = AwaitingHeader
}

func (d *Decoder) fail(err error) error {
	d.state = Violated
	d.err = err
	d.buffer = nil
	return err
}
