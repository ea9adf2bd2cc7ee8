// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit statuses.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitBind    = 3
)

// codedError attaches an exit status to an error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// WithCode returns err annotated with an exit status. A nil err stays
// nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// Code returns the exit status for err: ExitOK for nil, the outermost
// status attached by WithCode, or ExitFailure.
func Code(err error) int {
	if err == nil {
		return ExitOK
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return ExitFailure
}

// Report writes "error: err" to w unless err is nil, and returns the
// exit status for err.
func Report(w io.Writer, err error) int {
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return Code(err)
}

// Exit reports err on stderr and exits with its status.
func Exit(err error) {
	os.Exit(Report(os.Stderr, err))
}
