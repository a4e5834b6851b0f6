// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/inference-node/jobgraph"
	"github.com/bureau-foundation/inference-node/lib/clock"
	"github.com/bureau-foundation/inference-node/protocol"
)

// Default loop timings.
const (
	DefaultPollInterval = 10 * time.Second
	DefaultErrorBackoff = 30 * time.Second
)

// State is the loop's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDispatching
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// LoopConfig holds configuration for a Loop.
type LoopConfig struct {
	Identity  *Identity
	Channel   Channel
	Submitter Submitter

	// Build makes jobs from requests. If nil, jobgraph.Build is used.
	Build BuildFunc
	// Ledger records dispatches. If nil, a ledger of DefaultLedgerSize
	// is created.
	Ledger *Ledger
	// Clock drives the sleeps between cycles. If nil, clock.Real() is used.
	Clock clock.Clock

	// PollInterval is the pause after each cycle. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
	// ErrorBackoff is the pause after a cycle fails. Zero means
	// DefaultErrorBackoff.
	ErrorBackoff time.Duration

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Loop is the dispatch loop. It runs on a single goroutine: messages
// are handled one at a time, in the order the poll returned them, with
// at most one backend submission in flight.
type Loop struct {
	identity     *Identity
	channel      Channel
	submitter    Submitter
	build        BuildFunc
	ledger       *Ledger
	clock        clock.Clock
	pollInterval time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop creates a Loop in StateIdle.
func NewLoop(config LoopConfig) (*Loop, error) {
	if config.Identity == nil {
		return nil, errors.New("node: LoopConfig.Identity is required")
	}
	if config.Channel == nil {
		return nil, errors.New("node: LoopConfig.Channel is required")
	}
	if config.Submitter == nil {
		return nil, errors.New("node: LoopConfig.Submitter is required")
	}

	loop := &Loop{
		identity:     config.Identity,
		channel:      config.Channel,
		submitter:    config.Submitter,
		build:        config.Build,
		ledger:       config.Ledger,
		clock:        config.Clock,
		pollInterval: config.PollInterval,
		errorBackoff: config.ErrorBackoff,
		logger:       config.Logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	if loop.build == nil {
		loop.build = jobgraph.Build
	}
	if loop.ledger == nil {
		loop.ledger = NewLedger(DefaultLedgerSize)
	}
	if loop.clock == nil {
		loop.clock = clock.Real()
	}
	if loop.pollInterval <= 0 {
		loop.pollInterval = DefaultPollInterval
	}
	if loop.errorBackoff <= 0 {
		loop.errorBackoff = DefaultErrorBackoff
	}
	if loop.logger == nil {
		loop.logger = slog.Default()
	}
	return loop, nil
}

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(state State) {
	l.state.Store(int32(state))
}

// Ledger returns the loop's ledger.
func (l *Loop) Ledger() *Ledger {
	return l.ledger
}

// Stop asks the loop to finish. The current dispatch completes; no new
// cycle starts. Safe to call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stopRequested(ctx context.Context) bool {
	select {
	case <-l.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Run cycles until Stop is called or ctx is cancelled. Stop is checked
// before each cycle and wakes the pause between cycles; it never
// interrupts a poll, submission, or send in progress. Run must be
// called at most once.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.setState(StateStopped)

	l.logger.Info("dispatch loop started",
		"node_id", l.identity.ID(),
		"poll_interval", l.pollInterval,
		"error_backoff", l.errorBackoff,
	)

	for {
		if l.stopRequested(ctx) {
			l.logger.Info("dispatch loop stopped")
			return
		}

		pause := l.pollInterval
		if err := l.cycle(ctx); err != nil {
			l.ledger.cycleFailed()
			l.logger.Error("dispatch cycle failed, backing off",
				"error", err,
				"backoff", l.errorBackoff,
			)
			pause = l.errorBackoff
		}
		l.setState(StateIdle)

		select {
		case <-l.stop:
		case <-ctx.Done():
		case <-l.clock.After(pause):
		}
	}
}

// cycle polls once and dispatches the batch. Per-message failures are
// contained in dispatch; an error here means the cycle itself broke.
func (l *Loop) cycle(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("node: dispatch cycle panicked: %v", recovered)
		}
	}()

	// In-flight calls are not cancelled by stop; each carries its own
	// timeout.
	callContext := context.WithoutCancel(ctx)

	l.setState(StatePolling)
	messages := l.channel.Poll(callContext, l.identity.ID())
	l.ledger.polled(len(messages))
	if len(messages) > 0 {
		l.logger.Debug("polled messages", "count", len(messages))
	}

	l.setState(StateDispatching)
	for _, message := range messages {
		l.dispatch(callContext, message)
	}
	return nil
}

// dispatch handles one message. It never panics.
func (l *Loop) dispatch(ctx context.Context, message protocol.InboundMessage) {
	entry := Entry{Time: l.clock.Now(), Sender: message.Sender}

	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("message handling panicked, skipping",
				"sender", message.Sender,
				"panic", recovered,
			)
			entry.Outcome = OutcomePanicked
			entry.Detail = fmt.Sprint(recovered)
			l.ledger.finish(entry)
		}
	}()

	request, err := protocol.DecodeRequest(message)
	if err != nil {
		l.logger.Warn("skipping malformed message", "sender", message.Sender, "error", err)
		entry.Outcome = OutcomeMalformed
		entry.Detail = err.Error()
		l.ledger.finish(entry)
		return
	}
	if !request.IsInference() {
		l.logger.Debug("ignoring message", "sender", message.Sender, "type", request.Type)
		entry.Outcome = OutcomeIgnored
		entry.Detail = request.Type
		l.ledger.finish(entry)
		return
	}

	entry.Kind = request.RequestType
	entry.CorrelationID = protocol.CorrelationID(message.Sender, request.Raw)
	l.ledger.begin(entry)

	result := l.execute(ctx, request, &entry)
	entry.Status = result.Status
	entry.PromptID = result.PromptID
	entry.Detail = result.Error

	response := protocol.NewResponse(message, request, result)
	if err := l.channel.Send(ctx, response); err != nil {
		l.logger.Warn("sending response failed",
			"recipient", message.Sender,
			"correlation_id", entry.CorrelationID,
			"error", err,
		)
		entry.Outcome = OutcomeUndelivered
	} else {
		entry.Outcome = OutcomeAnswered
	}
	l.ledger.finish(entry)

	l.logger.Info("request answered",
		"sender", message.Sender,
		"kind", request.RequestType,
		"status", result.Status,
		"prompt_id", result.PromptID,
		"correlation_id", entry.CorrelationID,
		"delivered", entry.Outcome == OutcomeAnswered,
	)
}

// execute produces the result for one inference request. An unknown
// kind is answered without calling the builder.
func (l *Loop) execute(ctx context.Context, request *protocol.Request, entry *Entry) protocol.Result {
	kind, err := protocol.ParseKind(request)
	if err != nil {
		l.logger.Warn("rejecting request", "kind", request.RequestType, "error", err)
		return protocol.Failed(err.Error())
	}

	job, err := l.build(kind, request.Prompt, request.Options)
	if err != nil {
		l.logger.Warn("building job failed", "kind", kind, "error", err)
		return protocol.Failed(err.Error())
	}

	if digest, err := jobgraph.Digest(job); err == nil {
		entry.GraphDigest = digest
	} else {
		l.logger.Debug("graph digest unavailable", "kind", kind, "error", err)
	}

	return l.submitter.Submit(ctx, job)
}
