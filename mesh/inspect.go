// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrAgentNotFound is returned by AgentStatus when no registered agent
// has the requested name.
var ErrAgentNotFound = errors.New("mesh: agent not found")

// Agent is one entry of the mesh registry as listed by GET /api/agents.
// Fields the mesh omits stay empty.
type Agent struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	LastSeen     string   `json:"last_seen"`
	Endpoint     string   `json:"endpoint,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status string `json:"status"`
}

// DirectMessageRequest is the body of POST /api/messages: a plain text
// message addressed to an agent by name.
type DirectMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Agents lists every agent registered with the mesh.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.doRequest(ctx, http.MethodGet, "/api/agents", nil)
	if err != nil {
		return nil, err
	}
	var agents []Agent
	if err := json.Unmarshal(body, &agents); err != nil {
		return nil, fmt.Errorf("mesh: decoding agent list: %w", err)
	}
	return agents, nil
}

// AgentStatus returns the registry entry of the agent called name. A
// name with no entry returns an error wrapping ErrAgentNotFound.
func (c *Client) AgentStatus(ctx context.Context, name string) (Agent, error) {
	agents, err := c.Agents(ctx)
	if err != nil {
		return Agent{}, err
	}
	for _, agent := range agents {
		if agent.Name == name {
			return agent, nil
		}
	}
	return Agent{}, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
}

// Health reports the mesh service's own health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.doRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return Health{}, fmt.Errorf("mesh: decoding health: %w", err)
	}
	return health, nil
}

// Message sends a plain text message to the agent called to. Unlike
// Send it carries no envelope and no sender; the mesh attributes it to
// the API key.
func (c *Client) Message(ctx context.Context, to, message string) error {
	if to == "" {
		return errors.New("mesh: recipient is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.doRequest(ctx, http.MethodPost, "/api/messages", DirectMessageRequest{To: to, Message: message})
	return err
}
