// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"fmt"
)

// SubmissionError reports a job the backend rejected or could not be
// reached for. StatusCode is zero when no HTTP response arrived; Err
// then holds the cause (usually a *netutil.TransportError).
type SubmissionError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("backend: POST %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("backend: POST %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("backend: POST %s: %v", e.Endpoint, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Detail is the short cause reported to the requester.
func (e *SubmissionError) Detail() string {
	if e.StatusCode != 0 {
		if e.Endpoint == DistributedPath {
			return fmt.Sprintf("distributed API error: %d", e.StatusCode)
		}
		return fmt.Sprintf("backend error: %d", e.StatusCode)
	}
	return e.Err.Error()
}
