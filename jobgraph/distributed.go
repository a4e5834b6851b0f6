// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobgraph

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/bureau-foundation/inference-node/protocol"
)

// buildDistributed passes the requester's graph through unchanged. The
// graph must be a JSON object; its contents are not inspected.
func buildDistributed(variant Variant, prompt json.RawMessage, options protocol.Options) (*Job, error) {
	trimmed := bytes.TrimSpace(prompt)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, &PromptError{
			Kind: variant.Kind,
			Err:  errors.New("prompt must be a job graph object"),
		}
	}

	read := &optionReader{kind: variant.Kind, options: options}
	delegate := read.flag("delegate_master", false)
	workers := read.list("worker_ids", []string{})
	if read.err != nil {
		return nil, read.err
	}

	return &Job{
		Kind:     variant.Kind,
		ClientID: variant.ClientID,
		Prompt:   json.RawMessage(trimmed),
		Distributed: &DistributedOptions{
			DelegateMaster: delegate,
			WorkerIDs:      workers,
		},
	}, nil
}
