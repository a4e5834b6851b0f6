// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/inference-node/lib/secret"
	"github.com/bureau-foundation/inference-node/mesh"
	"github.com/bureau-foundation/inference-node/protocol"
)

func adapterClient(t *testing.T, baseURL string) *mesh.Client {
	t.Helper()
	key, err := secret.NewFromString("adapter-key")
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	client, err := mesh.NewClient(mesh.ClientConfig{
		BaseURL:     baseURL,
		APIKey:      key,
		Timeout:     time.Second,
		PollTimeout: time.Second,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("mesh.NewClient: %v", err)
	}
	return client
}

func TestMeshChannelPollDegradesToEmpty(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requests.Add(1)
		switch request.URL.Path {
		case "/api/messages/broken":
			writer.Write([]byte(`not json`))
		default:
			writer.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	identity := NewIdentity("n", "http://e", nil)
	channel := NewMeshChannel(adapterClient(t, server.URL), identity, testLogger())
	ctx := context.Background()

	if messages := channel.Poll(ctx, ""); messages != nil {
		t.Errorf("unregistered poll = %v", messages)
	}
	if requests.Load() != 0 {
		t.Errorf("unregistered poll reached the mesh")
	}
	if messages := channel.Poll(ctx, "agent-1"); messages != nil {
		t.Errorf("poll on 500 = %v", messages)
	}
	if messages := channel.Poll(ctx, "broken"); messages != nil {
		t.Errorf("poll on bad body = %v", messages)
	}

	unreachable := NewMeshChannel(adapterClient(t, "http://127.0.0.1:1"), identity, testLogger())
	if messages := unreachable.Poll(ctx, "agent-1"); messages != nil {
		t.Errorf("poll on unreachable mesh = %v", messages)
	}
}

func TestMeshChannelSendReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel := NewMeshChannel(adapterClient(t, server.URL), NewIdentity("n", "http://e", nil), testLogger())
	err := channel.Send(context.Background(), protocol.OutboundResponse{
		Recipient: "peer",
		Envelope:  protocol.ResponseEnvelope{Type: protocol.TypeInferenceResponse, Response: protocol.Queued("p")},
	})
	if !mesh.IsStatus(err, http.StatusBadGateway) {
		t.Errorf("expected 502 APIError, got %v", err)
	}
}

func TestMeshRegistryAnnouncement(t *testing.T) {
	registry := NewMeshRegistry(MeshRegistryConfig{
		BackendURL:   "http://gpu-box:8188/",
		Capabilities: []string{"image_generation", "multi_gpu_processing"},
		GPU:          "2x RTX 4090",
	})
	announcement := registry.Announcement()

	want := protocol.Announcement{
		Type:                protocol.TypeServiceAnnouncement,
		Service:             AnnouncedService,
		Capabilities:        []string{"image_generation", "multi_gpu_processing"},
		Endpoint:            "http://gpu-box:8188/distributed",
		APIEndpoint:         "http://gpu-box:8188/api",
		DistributedEndpoint: "http://gpu-box:8188/distributed",
		Status:              "available",
		GPU:                 "2x RTX 4090",
	}
	if announcement.Type != want.Type || announcement.Service != want.Service ||
		announcement.Endpoint != want.Endpoint || announcement.APIEndpoint != want.APIEndpoint ||
		announcement.DistributedEndpoint != want.DistributedEndpoint || announcement.Status != want.Status ||
		announcement.GPU != want.GPU || len(announcement.Capabilities) != 2 {
		t.Errorf("announcement = %+v, want %+v", announcement, want)
	}
}
