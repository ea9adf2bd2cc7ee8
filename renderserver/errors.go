// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package renderserver

import "fmt"

// BindError reports that the listening socket could not be created.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ViolationMessage is the failure response sent before closing a
// connection that violated the framing protocol. The specific reason
// is only logged.
const ViolationMessage = "server received malformed or excess data"
