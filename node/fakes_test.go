// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/inference-node/jobgraph"
	"github.com/bureau-foundation/inference-node/lib/clock"
	"github.com/bureau-foundation/inference-node/lib/testutil"
	"github.com/bureau-foundation/inference-node/protocol"
)

const (
	testPollInterval = 10 * time.Second
	testErrorBackoff = 30 * time.Second
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEpoch() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// fakeChannel serves queued batches and records what the loop sends.
type fakeChannel struct {
	mu          sync.Mutex
	batches     [][]protocol.InboundMessage
	polledIDs   []string
	sent        []protocol.OutboundResponse
	panicOnPoll int
	sendErr     func(protocol.OutboundResponse) error
}

func (c *fakeChannel) Poll(ctx context.Context, nodeID string) []protocol.InboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polledIDs = append(c.polledIDs, nodeID)
	if c.panicOnPoll == len(c.polledIDs) {
		panic("mesh client exploded")
	}
	if len(c.batches) == 0 {
		return nil
	}
	batch := c.batches[0]
	c.batches = c.batches[1:]
	return batch
}

func (c *fakeChannel) Send(ctx context.Context, response protocol.OutboundResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		if err := c.sendErr(response); err != nil {
			return err
		}
	}
	c.sent = append(c.sent, response)
	return nil
}

func (c *fakeChannel) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.polledIDs)
}

func (c *fakeChannel) Sent() []protocol.OutboundResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.OutboundResponse(nil), c.sent...)
}

// fakeSubmitter records jobs and answers with result, or with the
// outcome of respond when set.
type fakeSubmitter struct {
	mu      sync.Mutex
	jobs    []*jobgraph.Job
	result  protocol.Result
	respond func(*jobgraph.Job) protocol.Result
}

func (s *fakeSubmitter) Submit(ctx context.Context, job *jobgraph.Job) protocol.Result {
	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		return respond(job)
	}
	return s.result
}

func (s *fakeSubmitter) Jobs() []*jobgraph.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*jobgraph.Job(nil), s.jobs...)
}

// countingBuilder wraps jobgraph.Build and counts invocations.
type countingBuilder struct {
	calls atomic.Int64
}

func (b *countingBuilder) Build(kind protocol.Kind, prompt json.RawMessage, options protocol.Options) (*jobgraph.Job, error) {
	b.calls.Add(1)
	return jobgraph.Build(kind, prompt, options)
}

// fakeRegistry returns a fixed id or error.
type fakeRegistry struct {
	id          string
	registerErr error
	announceErr error
	registered  atomic.Int64
	announced   atomic.Int64
}

func (r *fakeRegistry) Register(ctx context.Context, identity *Identity) (string, error) {
	r.registered.Add(1)
	if r.registerErr != nil {
		return "", r.registerErr
	}
	return r.id, nil
}

func (r *fakeRegistry) Announce(ctx context.Context, identity *Identity) error {
	r.announced.Add(1)
	return r.announceErr
}

// envelopeMessage builds an inbound message whose content is envelope
// encoded as a JSON string, the way the mesh delivers it.
func envelopeMessage(t *testing.T, sender string, envelope map[string]any) protocol.InboundMessage {
	t.Helper()
	object, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("encoding envelope: %v", err)
	}
	content, err := json.Marshal(string(object))
	if err != nil {
		t.Fatalf("encoding content: %v", err)
	}
	return protocol.InboundMessage{Sender: sender, Content: content}
}

func inferenceMessage(t *testing.T, sender string, kind protocol.Kind, prompt any, options map[string]any) protocol.InboundMessage {
	t.Helper()
	envelope := map[string]any{
		"type":         protocol.TypeInferenceRequest,
		"request_type": kind,
		"prompt":       prompt,
	}
	if options != nil {
		envelope["options"] = options
	}
	return envelopeMessage(t, sender, envelope)
}

func registeredIdentity(t *testing.T) *Identity {
	t.Helper()
	identity := NewIdentity("test-node", "http://localhost:18789", []string{"image_generation"})
	if err := identity.SetID("node-1"); err != nil {
		t.Fatalf("SetID: %v", err)
	}
	return identity
}

type loopFixture struct {
	loop      *Loop
	channel   *fakeChannel
	submitter *fakeSubmitter
	builder   *countingBuilder
	clock     *clock.FakeClock
}

func newLoopFixture(t *testing.T, batches ...[]protocol.InboundMessage) *loopFixture {
	t.Helper()
	fixture := &loopFixture{
		channel:   &fakeChannel{batches: batches},
		submitter: &fakeSubmitter{result: protocol.Queued("prompt-1")},
		builder:   &countingBuilder{},
		clock:     clock.Fake(testEpoch()),
	}
	loop, err := NewLoop(LoopConfig{
		Identity:     registeredIdentity(t),
		Channel:      fixture.channel,
		Submitter:    fixture.submitter,
		Build:        fixture.builder.Build,
		Clock:        fixture.clock,
		PollInterval: testPollInterval,
		ErrorBackoff: testErrorBackoff,
		Logger:       testLogger(),
	})
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	fixture.loop = loop
	return fixture
}

// start runs the loop and waits for the first cycle to finish. The
// loop is stopped when the test ends.
func (f *loopFixture) start(t *testing.T) {
	t.Helper()
	go f.loop.Run(context.Background())
	t.Cleanup(func() {
		f.loop.Stop()
		testutil.RequireClosed(t, f.loop.Done(), 5*time.Second, "loop exit")
	})
	f.clock.WaitForTimers(1)
}

// nextCycle advances past the poll interval and waits for the
// following cycle to finish.
func (f *loopFixture) nextCycle(d time.Duration) {
	f.clock.Advance(d)
	f.clock.WaitForTimers(1)
}

var errSendRefused = errors.New("send refused")
