// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Identity is how the node presents itself on the mesh. Name, Endpoint,
// and Capabilities are fixed at construction. The mesh-assigned id is
// set once by a successful registration.
type Identity struct {
	name         string
	endpoint     string
	capabilities []string

	mu sync.RWMutex
	id string
}

// NewIdentity creates an unregistered identity.
func NewIdentity(name, endpoint string, capabilities []string) *Identity {
	return &Identity{
		name:         name,
		endpoint:     endpoint,
		capabilities: slices.Clone(capabilities),
	}
}

// Name returns the display name.
func (i *Identity) Name() string { return i.name }

// Endpoint returns the advertised endpoint.
func (i *Identity) Endpoint() string { return i.endpoint }

// Capabilities returns a copy of the capability list in order.
func (i *Identity) Capabilities() []string { return slices.Clone(i.capabilities) }

// ID returns the assigned id, or "" before registration.
func (i *Identity) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// Registered reports whether an id has been assigned.
func (i *Identity) Registered() bool {
	return i.ID() != ""
}

// SetID records the id assigned by registration. It fails if id is
// empty or an id was already set.
func (i *Identity) SetID(id string) error {
	if id == "" {
		return errors.New("node: assigned id is empty")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.id != "" {
		return fmt.Errorf("node: identity %q already registered as %q", i.name, i.id)
	}
	i.id = id
	return nil
}
