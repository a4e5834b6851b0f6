// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jobgraph turns an inference request into the declarative
// node graph the backend executes.
//
// Each [protocol.Kind] maps to one [Variant]: a builder function, the
// backend client id its jobs are queued under, and whether the job
// goes to the distributed queue. Adding a kind means adding a variant;
// the dispatch loop does not change. Builders are pure: the same kind,
// prompt, and options always yield the same graph, and [Digest] gives
// that graph a stable content hash.
package jobgraph
