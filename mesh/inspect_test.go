// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// registryServer serves a fixed agent list and health document, and
// records direct messages.
type registryServer struct {
	t      *testing.T
	agents string
	health string

	mu       sync.Mutex
	messages []DirectMessageRequest
}

func (s *registryServer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if !requireKey(s.t, writer, request) {
		return
	}
	switch {
	case request.Method == http.MethodGet && request.URL.Path == "/api/agents":
		writer.Write([]byte(s.agents))
	case request.Method == http.MethodGet && request.URL.Path == "/api/health":
		writer.Write([]byte(s.health))
	case request.Method == http.MethodPost && request.URL.Path == "/api/messages":
		var message DirectMessageRequest
		if err := json.NewDecoder(request.Body).Decode(&message); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.messages = append(s.messages, message)
		s.mu.Unlock()
		writer.Write([]byte(`{"ok":true}`))
	default:
		s.t.Errorf("unexpected %s %s", request.Method, request.URL.Path)
		writer.WriteHeader(http.StatusNotFound)
	}
}

func (s *registryServer) Messages() []DirectMessageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DirectMessageRequest(nil), s.messages...)
}

const testAgents = `[
	{"id":"a1","name":"ComfyUI-Mesh-Agent","status":"online","last_seen":"2026-03-01T12:00:00Z","capabilities":["image_generation"]},
	{"name":"planner","status":"idle"}
]`

func TestAgents(t *testing.T) {
	server := httptest.NewServer(&registryServer{t: t, agents: testAgents})
	defer server.Close()

	agents, err := testClient(t, server.URL).Agents(context.Background())
	if err != nil {
		t.Fatalf("Agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("got %d agents, want 2", len(agents))
	}
	first := agents[0]
	if first.ID != "a1" || first.Name != "ComfyUI-Mesh-Agent" || first.Status != "online" || first.LastSeen != "2026-03-01T12:00:00Z" {
		t.Errorf("first agent = %+v", first)
	}
	if len(first.Capabilities) != 1 || first.Capabilities[0] != "image_generation" {
		t.Errorf("capabilities = %v", first.Capabilities)
	}
	if agents[1].LastSeen != "" {
		t.Errorf("absent last_seen decoded as %q", agents[1].LastSeen)
	}
}

func TestAgentsRejectsNonList(t *testing.T) {
	server := httptest.NewServer(&registryServer{t: t, agents: `{"agents":"many"}`})
	defer server.Close()

	if _, err := testClient(t, server.URL).Agents(context.Background()); err == nil {
		t.Error("expected error for a non-list agent body")
	}
}

func TestAgentStatus(t *testing.T) {
	server := httptest.NewServer(&registryServer{t: t, agents: testAgents})
	defer server.Close()
	client := testClient(t, server.URL)

	agent, err := client.AgentStatus(context.Background(), "planner")
	if err != nil {
		t.Fatalf("AgentStatus: %v", err)
	}
	if agent.Status != "idle" {
		t.Errorf("status = %q", agent.Status)
	}

	_, err = client.AgentStatus(context.Background(), "ghost")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("AgentStatus(ghost) = %v, want ErrAgentNotFound", err)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(&registryServer{t: t, health: `{"status":"ok","agents":3}`})
	defer server.Close()

	health, err := testClient(t, server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q", health.Status)
	}
}

func TestHealthServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "degraded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Health(context.Background())
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("Health error = %v, want 503 *APIError", err)
	}
}

func TestMessage(t *testing.T) {
	registry := &registryServer{t: t}
	server := httptest.NewServer(registry)
	defer server.Close()
	client := testClient(t, server.URL)

	if err := client.Message(context.Background(), "planner", "render queue drained"); err != nil {
		t.Fatalf("Message: %v", err)
	}
	messages := registry.Messages()
	if len(messages) != 1 || messages[0] != (DirectMessageRequest{To: "planner", Message: "render queue drained"}) {
		t.Errorf("messages = %+v", messages)
	}

	if err := client.Message(context.Background(), "", "x"); err == nil {
		t.Error("expected error for empty recipient")
	}
}
