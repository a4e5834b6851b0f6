// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the node's CBOR configuration.
//
// JSON is the format of everything that crosses the network (mesh
// REST calls, backend job submission, message envelopes). CBOR is used
// for the two places where a compact, deterministic encoding matters:
// the local control socket protocol and the canonical form of job
// graphs that is hashed into a digest.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): map
// keys are sorted and integers take their shortest form, so the same
// value always encodes to the same bytes.
//
// Types tagged only with `json` tags are also read by the CBOR
// encoder, so protocol types do not need a second set of tags.
package codec
