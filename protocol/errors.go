// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

// DecodeError reports message content that could not be parsed. The
// message is skipped without a response.
type DecodeError struct {
	Sender string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Sender == "" {
		return fmt.Sprintf("protocol: malformed content: %v", e.Err)
	}
	return fmt.Sprintf("protocol: malformed content from %q: %v", e.Sender, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownKindError reports a request whose request_type the node does
// not serve. The requester receives an error result.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown request type: %q", string(e.Kind))
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsUnknownKind reports whether err is or wraps an *UnknownKindError.
func IsUnknownKind(err error) bool {
	var kindErr *UnknownKindError
	return errors.As(err, &kindErr)
}
