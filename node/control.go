// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/inference-node/lib/codec"
	"github.com/bureau-foundation/inference-node/lib/service"
)

// Control socket actions.
const (
	ActionStatus = "status"
	ActionRecent = "recent"
	ActionStop   = "stop"
)

// Status is the answer to the status action.
type Status struct {
	Name         string   `cbor:"name"`
	NodeID       string   `cbor:"node_id,omitempty"`
	Endpoint     string   `cbor:"endpoint"`
	Capabilities []string `cbor:"capabilities"`
	State        string   `cbor:"state"`
	Counters     Counters `cbor:"counters"`
	InFlight     *Entry   `cbor:"in_flight,omitempty"`
}

// RecentRequest is the request body of the recent action. A zero Limit
// returns every kept entry.
type RecentRequest struct {
	Limit int `cbor:"limit"`
}

// Status reports identity, loop state, and ledger counters.
func (n *Node) Status() Status {
	status := Status{
		Name:         n.identity.Name(),
		NodeID:       n.identity.ID(),
		Endpoint:     n.identity.Endpoint(),
		Capabilities: n.identity.Capabilities(),
		State:        n.loop.State().String(),
		Counters:     n.loop.ledger.Counters(),
	}
	if entry, ok := n.loop.ledger.InFlight(); ok {
		status.InFlight = &entry
	}
	return status
}

// Handle registers the node's control actions on server.
func (n *Node) Handle(server *service.SocketServer) {
	server.Handle(ActionStatus, func(ctx context.Context, raw []byte) (any, error) {
		return n.Status(), nil
	})

	server.Handle(ActionRecent, func(ctx context.Context, raw []byte) (any, error) {
		var request RecentRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("invalid recent request: %w", err)
		}
		if request.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative, got %d", request.Limit)
		}
		return n.loop.ledger.Recent(request.Limit), nil
	})

	server.Handle(ActionStop, func(ctx context.Context, raw []byte) (any, error) {
		n.logger.Info("stop requested over control socket")
		n.Stop()
		return nil, nil
	})
}
