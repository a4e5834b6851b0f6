// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend submits job graphs to the inference backend's queue.
//
// Regular jobs go to POST /api/prompt; distributed jobs go to the
// distributed extension's POST /distributed/queue with the delegate
// flag and worker list. [Client.Submit] never returns an error: every
// failure becomes a [protocol.Result] with status "error" so the
// requester is always answered. The typed [SubmissionError] is
// available from [Client.Queue] for callers that want the detail.
package backend
