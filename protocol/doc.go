// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the message envelopes exchanged between the
// inference node and its peers on the mesh.
//
// Peers address work to the node with a content envelope whose "type"
// is [TypeInferenceRequest]. The node answers each request with exactly
// one [ResponseEnvelope] that embeds the original request verbatim, so
// the requester can correlate the answer without shared state. The
// envelope travels on the mesh as a JSON string inside the transport
// message's "content" field; [DecodeRequest] also accepts an inline
// JSON object.
//
// Failures are typed: [*DecodeError] for content that cannot be parsed
// (the message is skipped) and [*UnknownKindError] for a well-formed
// request naming a work type the node does not serve (the requester
// gets an error [Result]).
package protocol
