// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package node runs an inference node on the agent mesh.
//
// [Node.Start] registers the node's [Identity] (fatal on failure),
// broadcasts a service announcement (best effort), and then runs the
// dispatch [Loop] until stopped. The loop polls the mesh for messages,
// decodes each one, builds a job graph for inference requests, submits
// it to the backend, and sends exactly one correlated response per
// request. Messages are handled one at a time in arrival order; a
// malformed or panicking message is skipped without affecting the rest
// of its batch.
//
// The mesh, the backend, and the graph builder are reached through the
// [Registry], [Channel], [Submitter], and [BuildFunc] seams so the loop
// can be tested without a network. [MeshRegistry] and [MeshChannel]
// adapt a [mesh.Client] to the first two.
//
// A [Ledger] records recent dispatches and counters. [Node.Handle]
// exposes it, with the node state, on the control socket.
package node
