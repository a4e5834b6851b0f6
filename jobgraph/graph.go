// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobgraph

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/inference-node/lib/codec"
	"github.com/bureau-foundation/inference-node/protocol"
)

// Node is one step of a backend graph.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Graph maps node ids to nodes. Links between nodes are written as
// [id, output-index] pairs; see Link.
type Graph map[string]Node

// Link references output index of the node with the given id.
func Link(id string, index int) []any {
	return []any{id, index}
}

// DistributedOptions carries the distributed queue's extra fields.
type DistributedOptions struct {
	DelegateMaster bool
	WorkerIDs      []string
}

// Job is a graph ready for submission.
type Job struct {
	Kind protocol.Kind

	// ClientID is the backend client id the job is queued under.
	ClientID string

	// Prompt is the graph in wire form. For built kinds it is the JSON
	// encoding of Graph; for distributed jobs it is the requester's
	// graph passed through unchanged.
	Prompt json.RawMessage

	// Graph is set for kinds whose graph this package builds.
	Graph Graph

	// Distributed is set iff the job targets the distributed queue.
	Distributed *DistributedOptions
}

// newBuiltJob finalizes a job whose graph was built here.
func newBuiltJob(variant Variant, graph Graph) (*Job, error) {
	prompt, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("jobgraph: encoding %s graph: %w", variant.Kind, err)
	}
	return &Job{Kind: variant.Kind, ClientID: variant.ClientID, Prompt: prompt, Graph: graph}, nil
}

// Digest returns a hex BLAKE3 hash of the job's graph. The graph is
// hashed in deterministic CBOR, so key order and whitespace in the
// wire form do not matter. Numbers are hashed by their literal text,
// so seeds beyond float64 precision still produce distinct digests.
func Digest(job *Job) (string, error) {
	decoder := json.NewDecoder(bytes.NewReader(job.Prompt))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return "", fmt.Errorf("jobgraph: decoding graph for digest: %w", err)
	}
	canonical, err := codec.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("jobgraph: canonical encoding: %w", err)
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
