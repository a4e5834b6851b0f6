// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/inference-node/lib/clock"
)

// Config holds configuration for a Node.
type Config struct {
	Identity  *Identity
	Registry  Registry
	Channel   Channel
	Submitter Submitter

	// Build, Ledger, Clock, PollInterval, and ErrorBackoff are passed
	// to the loop; see LoopConfig.
	Build        BuildFunc
	Ledger       *Ledger
	Clock        clock.Clock
	PollInterval time.Duration
	ErrorBackoff time.Duration

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Node is an inference node: an identity, its mesh registration, and
// the dispatch loop serving it.
type Node struct {
	identity *Identity
	registry Registry
	loop     *Loop
	logger   *slog.Logger
}

// New creates a Node. Nothing touches the network until Start.
func New(config Config) (*Node, error) {
	if config.Registry == nil {
		return nil, errors.New("node: Config.Registry is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	loop, err := NewLoop(LoopConfig{
		Identity:     config.Identity,
		Channel:      config.Channel,
		Submitter:    config.Submitter,
		Build:        config.Build,
		Ledger:       config.Ledger,
		Clock:        config.Clock,
		PollInterval: config.PollInterval,
		ErrorBackoff: config.ErrorBackoff,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return &Node{
		identity: config.Identity,
		registry: config.Registry,
		loop:     loop,
		logger:   logger,
	}, nil
}

// Identity returns the node's identity.
func (n *Node) Identity() *Identity { return n.identity }

// Loop returns the node's dispatch loop.
func (n *Node) Loop() *Loop { return n.loop }

// Start registers the node, announces it, and runs the dispatch loop
// until Stop is called or ctx is cancelled. A registration failure is
// returned as *RegistrationError before anything else happens; an
// announcement failure is only logged, since peers can still message
// the node directly.
func (n *Node) Start(ctx context.Context) error {
	id, err := n.registry.Register(ctx, n.identity)
	if err != nil {
		return &RegistrationError{Name: n.identity.Name(), Cause: err}
	}
	if err := n.identity.SetID(id); err != nil {
		return &RegistrationError{Name: n.identity.Name(), Cause: err}
	}
	n.logger.Info("registered with mesh",
		"name", n.identity.Name(),
		"node_id", id,
		"capabilities", n.identity.Capabilities(),
	)

	if err := n.registry.Announce(ctx, n.identity); err != nil {
		n.logger.Warn("announcement failed, continuing", "error", err)
	} else {
		n.logger.Info("announced availability")
	}

	n.loop.Run(ctx)
	return nil
}

// Stop asks the dispatch loop to finish after the current message.
func (n *Node) Stop() {
	n.loop.Stop()
}
