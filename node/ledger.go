// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"sync"
	"time"

	"github.com/bureau-foundation/inference-node/protocol"
)

// DefaultLedgerSize is the number of dispatches a Ledger keeps when
// none is given.
const DefaultLedgerSize = 256

// Outcome classifies how one polled message was handled.
type Outcome string

const (
	// OutcomeAnswered: a response was built and sent.
	OutcomeAnswered Outcome = "answered"
	// OutcomeUndelivered: a response was built but Send failed.
	OutcomeUndelivered Outcome = "undelivered"
	// OutcomeIgnored: the message was not an inference request.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeMalformed: the content could not be decoded.
	OutcomeMalformed Outcome = "malformed"
	// OutcomePanicked: handling the message panicked.
	OutcomePanicked Outcome = "panicked"
)

// Entry records one dispatched message.
type Entry struct {
	Time          time.Time       `cbor:"time"`
	Sender        string          `cbor:"sender"`
	CorrelationID string          `cbor:"correlation_id,omitempty"`
	Kind          protocol.Kind   `cbor:"kind,omitempty"`
	GraphDigest   string          `cbor:"graph_digest,omitempty"`
	Outcome       Outcome         `cbor:"outcome"`
	Status        protocol.Status `cbor:"status,omitempty"`
	PromptID      string          `cbor:"prompt_id,omitempty"`
	Detail        string          `cbor:"detail,omitempty"`
}

// Counters are running totals since the node started.
type Counters struct {
	Polls         uint64 `cbor:"polls"`
	Received      uint64 `cbor:"received"`
	Answered      uint64 `cbor:"answered"`
	Failed        uint64 `cbor:"failed"`
	Undelivered   uint64 `cbor:"undelivered"`
	Ignored       uint64 `cbor:"ignored"`
	Malformed     uint64 `cbor:"malformed"`
	Panicked      uint64 `cbor:"panicked"`
	CycleFailures uint64 `cbor:"cycle_failures"`
}

// Ledger tracks the request in flight and a bounded history of handled
// messages. It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	full     bool
	inFlight *Entry
	counters Counters
}

// NewLedger creates a ledger keeping the last size entries. A
// non-positive size uses DefaultLedgerSize.
func NewLedger(size int) *Ledger {
	if size <= 0 {
		size = DefaultLedgerSize
	}
	return &Ledger{entries: make([]Entry, size)}
}

// polled counts one poll returning count messages.
func (l *Ledger) polled(count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters.Polls++
	l.counters.Received += uint64(count)
}

func (l *Ledger) cycleFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters.CycleFailures++
}

// begin marks entry as the request being worked on.
func (l *Ledger) begin(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = &entry
}

// finish clears the in-flight request and appends entry to the history.
func (l *Ledger) finish(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight = nil
	switch entry.Outcome {
	case OutcomeAnswered:
		l.counters.Answered++
	case OutcomeUndelivered:
		l.counters.Undelivered++
	case OutcomeIgnored:
		l.counters.Ignored++
	case OutcomeMalformed:
		l.counters.Malformed++
	case OutcomePanicked:
		l.counters.Panicked++
	}
	if entry.Status == protocol.StatusError {
		l.counters.Failed++
	}

	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// InFlight returns the request currently being handled, if any.
func (l *Ledger) InFlight() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight == nil {
		return Entry{}, false
	}
	return *l.inFlight, true
}

// Counters returns a snapshot of the running totals.
func (l *Ledger) Counters() Counters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters
}

// Recent returns up to limit entries, newest first. A non-positive
// limit returns everything kept.
func (l *Ledger) Recent(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.next
	if l.full {
		count = len(l.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	result := make([]Entry, 0, limit)
	index := l.next
	for range limit {
		index = (index - 1 + len(l.entries)) % len(l.entries)
		result = append(result, l.entries[index])
	}
	return result
}
