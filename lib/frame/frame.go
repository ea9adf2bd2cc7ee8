// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// HeaderLen is the width of the decimal length header.
	HeaderLen = 9

	// MaxLength is the largest body a 9-digit header can describe.
	MaxLength = 999_999_999

	// StatusSuccess and StatusFailure are the response status bytes.
	StatusSuccess byte = '0'
	StatusFailure byte = '1'
)

// ErrBodyTooLarge is returned when a body cannot be described by a
// 9-digit length header, or exceeds a caller's limit.
var ErrBodyTooLarge = errors.New("frame: body too large")

// Response is one decoded response frame.
type Response struct {
	OK   bool
	Body []byte
}

// EncodeRequest prefixes document with its byte length.
func EncodeRequest(document []byte) ([]byte, error) {
	if len(document) > MaxLength {
		return nil, ErrBodyTooLarge
	}
	out := make([]byte, 0, HeaderLen+len(document))
	out = appendLength(out, len(document))
	return append(out, document...), nil
}

// EncodeResponse produces status byte, length header, and body as one
// contiguous slice, so a single Write puts the whole frame on the wire.
func EncodeResponse(ok bool, body []byte) ([]byte, error) {
	if len(body) > MaxLength {
		return nil, ErrBodyTooLarge
	}
	status := StatusFailure
	if ok {
		status = StatusSuccess
	}
	out := make([]byte, 0, 1+HeaderLen+len(body))
	out = append(out, status)
	out = appendLength(out, len(body))
	return append(out, body...), nil
}

// ReadResponse reads exactly one response frame from r. A maxBody of
// zero or less means MaxLength.
func ReadResponse(r io.Reader, maxBody int) (Response, error) {
	if maxBody <= 0 || maxBody > MaxLength {
		maxBody = MaxLength
	}

	var head [1 + HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Response{}, fmt.Errorf("reading response header: %w", err)
	}

	var ok bool
	switch head[0] {
	case StatusSuccess:
		ok = true
	case StatusFailure:
		ok = false
	default:
		return Response{}, &ViolationError{Reason: fmt.Sprintf("unknown status byte %q", head[0])}
	}

	length, err := parseLength(head[1:])
	if err != nil {
		return Response{}, err
	}
	if length > maxBody {
		return Response{}, fmt.Errorf("response declares %d bytes (limit %d): %w", length, maxBody, ErrBodyTooLarge)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Response{}, fmt.Errorf("reading response body: %w", err)
	}
	return Response{OK: ok, Body: body}, nil
}

// appendLength appends n as a zero-padded 9-digit decimal.
func appendLength(dst []byte, n int) []byte {
	digits := strconv.AppendInt(nil, int64(n), 10)
	for i := len(digits); i < HeaderLen; i++ {
		dst = append(dst, '0')
	}
	return append(dst, digits...)
}

// parseLength parses a 9-byte header. Only ASCII digits are accepted:
// strconv.Atoi alone would let signs through.
func parseLength(header []byte) (int, error) {
	if len(header) != HeaderLen {
		return 0, &ViolationError{Reason: fmt.Sprintf("length header is %d bytes, want %d", len(header), HeaderLen)}
	}
	n := 0
	for _, c := range header {
		if c < '0' || c > '9' {
			return 0, &ViolationError{Reason: fmt.Sprintf("malformed length header %q", header)}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
