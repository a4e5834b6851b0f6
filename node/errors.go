// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"fmt"
)

// RegistrationError reports that the node could not join the mesh. It
// is fatal to Start: no announcement is made and no poll happens.
type RegistrationError struct {
	Name  string
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("node: registering %q: %v", e.Name, e.Cause)
}

func (e *RegistrationError) Unwrap() error { return e.Cause }

// Timeout reports whether registration failed because its deadline
// expired.
func (e *RegistrationError) Timeout() bool {
	return errors.Is(e.Cause, context.DeadlineExceeded)
}

// IsRegistrationError reports whether err is or wraps a
// *RegistrationError.
func IsRegistrationError(err error) bool {
	var registrationErr *RegistrationError
	return errors.As(err, &registrationErr)
}
