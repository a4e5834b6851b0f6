// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"encoding/json"

	"github.com/bureau-foundation/inference-node/jobgraph"
	"github.com/bureau-foundation/inference-node/protocol"
)

// Registry joins the mesh.
type Registry interface {
	// Register announces identity to the mesh registry and returns the
	// assigned id. It does not modify identity.
	Register(ctx context.Context, identity *Identity) (string, error)

	// Announce broadcasts the node's availability. Failure is not fatal.
	Announce(ctx context.Context, identity *Identity) error
}

// Channel moves messages between the node and its peers.
type Channel interface {
	// Poll returns pending messages for nodeID. It never fails: an
	// empty nodeID or any transport problem yields no messages.
	Poll(ctx context.Context, nodeID string) []protocol.InboundMessage

	// Send delivers one response. Failures are reported, not retried.
	Send(ctx context.Context, response protocol.OutboundResponse) error
}

// Submitter queues jobs on the backend. Submit never fails; problems
// come back as an error Result.
type Submitter interface {
	Submit(ctx context.Context, job *jobgraph.Job) protocol.Result
}

// BuildFunc turns a request into a job. jobgraph.Build is the
// production implementation.
type BuildFunc func(kind protocol.Kind, prompt json.RawMessage, options protocol.Options) (*jobgraph.Job, error)
