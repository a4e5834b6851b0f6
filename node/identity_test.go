// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"sync"
	"testing"
)

func TestIdentitySetIDOnce(t *testing.T) {
	identity := NewIdentity("node", "http://localhost:18789", []string{"a", "b"})
	if identity.Registered() || identity.ID() != "" {
		t.Fatal("new identity already registered")
	}

	if err := identity.SetID(""); err == nil {
		t.Error("empty id accepted")
	}
	if err := identity.SetID("agent-1"); err != nil {
		t.Fatalf("SetID: %v", err)
	}
	if err := identity.SetID("agent-2"); err == nil {
		t.Error("second SetID accepted")
	}
	if identity.ID() != "agent-1" {
		t.Errorf("id = %q, want the first assignment", identity.ID())
	}
}

func TestIdentityCapabilitiesAreCopied(t *testing.T) {
	capabilities := []string{"a", "b"}
	identity := NewIdentity("node", "http://e", capabilities)
	capabilities[0] = "mutated"

	got := identity.Capabilities()
	if got[0] != "a" {
		t.Errorf("identity shares caller's slice: %v", got)
	}
	got[1] = "mutated"
	if identity.Capabilities()[1] != "b" {
		t.Error("Capabilities returned internal slice")
	}
}

func TestIdentityConcurrentReads(t *testing.T) {
	identity := NewIdentity("node", "http://e", nil)

	var group sync.WaitGroup
	for range 8 {
		group.Add(1)
		go func() {
			defer group.Done()
			for range 100 {
				_ = identity.ID()
			}
		}()
	}
	if err := identity.SetID("agent-1"); err != nil {
		t.Fatalf("SetID: %v", err)
	}
	group.Wait()
}
