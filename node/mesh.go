// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/inference-node/mesh"
	"github.com/bureau-foundation/inference-node/protocol"
)

// AnnouncedService is the service name carried in announcements.
const AnnouncedService = "comfyui_distributed"

// MeshRegistryConfig holds configuration for a MeshRegistry.
type MeshRegistryConfig struct {
	Client *mesh.Client
	// BackendURL is advertised as the base of the api and distributed
	// endpoints.
	BackendURL string
	// Capabilities are the tags in the announcement, which may differ
	// from the registration capabilities.
	Capabilities []string
	// GPU optionally describes the node's hardware.
	GPU string
}

// MeshRegistry registers and announces through a mesh.Client.
type MeshRegistry struct {
	client       *mesh.Client
	backendURL   string
	capabilities []string
	gpu          string
}

// NewMeshRegistry creates a MeshRegistry.
func NewMeshRegistry(config MeshRegistryConfig) *MeshRegistry {
	return &MeshRegistry{
		client:       config.Client,
		backendURL:   strings.TrimRight(config.BackendURL, "/"),
		capabilities: config.Capabilities,
		gpu:          config.GPU,
	}
}

// Register implements Registry.
func (r *MeshRegistry) Register(ctx context.Context, identity *Identity) (string, error) {
	return r.client.Register(ctx, mesh.RegisterRequest{
		Name:         identity.Name(),
		Endpoint:     identity.Endpoint(),
		Capabilities: identity.Capabilities(),
	})
}

// Announcement returns the advertisement Announce broadcasts.
func (r *MeshRegistry) Announcement() protocol.Announcement {
	capabilities := r.capabilities
	if capabilities == nil {
		capabilities = []string{}
	}
	return protocol.Announcement{
		Type:                protocol.TypeServiceAnnouncement,
		Service:             AnnouncedService,
		Capabilities:        capabilities,
		Endpoint:            r.backendURL + "/distributed",
		APIEndpoint:         r.backendURL + "/api",
		DistributedEndpoint: r.backendURL + "/distributed",
		Status:              "available",
		GPU:                 r.gpu,
	}
}

// Announce implements Registry.
func (r *MeshRegistry) Announce(ctx context.Context, identity *Identity) error {
	content, err := json.Marshal(r.Announcement())
	if err != nil {
		return fmt.Errorf("node: encoding announcement: %w", err)
	}
	return r.client.Broadcast(ctx, mesh.BroadcastRequest{
		Content:  string(content),
		Sender:   identity.Name(),
		Priority: protocol.PriorityNormal,
	})
}

// MeshChannel polls and sends through a mesh.Client. Outbound messages
// carry the identity's name as sender.
type MeshChannel struct {
	client   *mesh.Client
	identity *Identity
	logger   *slog.Logger
}

// NewMeshChannel creates a MeshChannel. A nil logger uses slog.Default().
func NewMeshChannel(client *mesh.Client, identity *Identity, logger *slog.Logger) *MeshChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &MeshChannel{client: client, identity: identity, logger: logger}
}

// Poll implements Channel.
func (c *MeshChannel) Poll(ctx context.Context, nodeID string) []protocol.InboundMessage {
	if nodeID == "" {
		c.logger.Debug("poll skipped: node not registered")
		return nil
	}
	messages, err := c.client.Messages(ctx, nodeID)
	if err != nil {
		c.logger.Warn("poll failed", "node_id", nodeID, "error", err)
		return nil
	}
	return messages
}

// Send implements Channel.
func (c *MeshChannel) Send(ctx context.Context, response protocol.OutboundResponse) error {
	content, err := response.EncodeContent()
	if err != nil {
		return err
	}
	priority := response.Priority
	if priority == "" {
		priority = protocol.PriorityNormal
	}
	return c.client.Send(ctx, mesh.SendRequest{
		Content:   content,
		Sender:    c.identity.Name(),
		Recipient: response.Recipient,
		Priority:  priority,
	})
}
