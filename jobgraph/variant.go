// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jobgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/inference-node/protocol"
)

// BuildFunc builds a job for variant from a request's prompt and
// options. The job is queued under variant.ClientID.
type BuildFunc func(variant Variant, prompt json.RawMessage, options protocol.Options) (*Job, error)

// Variant binds a kind to its builder and the backend client id its
// jobs are queued under.
type Variant struct {
	Kind     protocol.Kind
	ClientID string
	Build    BuildFunc
}

// Backend client ids, one per kind.
const (
	ClientIDImage       = "mesh-agent"
	ClientIDVideo       = "mesh-agent-video"
	ClientIDDistributed = "mesh-distributed"
)

var variants = map[protocol.Kind]Variant{
	protocol.KindImage: {
		Kind:     protocol.KindImage,
		ClientID: ClientIDImage,
		Build:    buildImage,
	},
	protocol.KindVideo: {
		Kind:     protocol.KindVideo,
		ClientID: ClientIDVideo,
		Build:    buildVideo,
	},
	protocol.KindDistributed: {
		Kind:     protocol.KindDistributed,
		ClientID: ClientIDDistributed,
		Build:    buildDistributed,
	},
}

// Lookup returns the variant for kind.
func Lookup(kind protocol.Kind) (Variant, bool) {
	variant, ok := variants[kind]
	return variant, ok
}

// Build builds the job for kind. An unserved kind returns
// *protocol.UnknownKindError; callers are expected to have rejected it
// already. A prompt or option of the wrong shape returns *PromptError.
func Build(kind protocol.Kind, prompt json.RawMessage, options protocol.Options) (*Job, error) {
	variant, ok := Lookup(kind)
	if !ok {
		return nil, &protocol.UnknownKindError{Kind: kind}
	}
	if options == nil {
		options = protocol.Options{}
	}
	return variant.Build(variant, prompt, options)
}

// PromptError reports a request for a served kind whose prompt or
// options cannot be turned into a graph.
type PromptError struct {
	Kind protocol.Kind
	Err  error
}

func (e *PromptError) Error() string {
	return fmt.Sprintf("invalid %s request: %v", e.Kind, e.Err)
}

func (e *PromptError) Unwrap() error { return e.Err }

// IsPromptError reports whether err is or wraps a *PromptError.
func IsPromptError(err error) bool {
	var promptErr *PromptError
	return errors.As(err, &promptErr)
}

// textFields decodes a text prompt. The prompt may be an object whose
// string fields are read by name, or a bare string which is taken as
// the value of primary. Absent or null yields no fields.
func textFields(kind protocol.Kind, prompt json.RawMessage, primary string) (map[string]string, error) {
	fields := map[string]string{}
	if len(prompt) == 0 || string(prompt) == "null" {
		return fields, nil
	}

	var text string
	if err := json.Unmarshal(prompt, &text); err == nil {
		fields[primary] = text
		return fields, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(prompt, &object); err != nil {
		return nil, &PromptError{Kind: kind, Err: errors.New("prompt must be an object or a string")}
	}
	for key, raw := range object {
		if string(raw) == "null" {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, &PromptError{Kind: kind, Err: fmt.Errorf("prompt field %q must be a string", key)}
		}
		fields[key] = value
	}
	return fields, nil
}

// optionReader collects the first option error so builders can read
// every option in sequence and check once.
type optionReader struct {
	kind    protocol.Kind
	options protocol.Options
	err     error
}

func (r *optionReader) record(err error) {
	if err != nil && r.err == nil {
		r.err = &PromptError{Kind: r.kind, Err: err}
	}
}

func (r *optionReader) integer(key string, fallback int64) int64 {
	value, err := r.options.Int(key, fallback)
	r.record(err)
	return value
}

func (r *optionReader) seed(key string, fallback uint64) uint64 {
	value, err := r.options.Uint(key, fallback)
	r.record(err)
	return value
}

func (r *optionReader) number(key string, fallback float64) float64 {
	value, err := r.options.Float(key, fallback)
	r.record(err)
	return value
}

func (r *optionReader) text(key, fallback string) string {
	value, err := r.options.String(key, fallback)
	r.record(err)
	return value
}

func (r *optionReader) flag(key string, fallback bool) bool {
	value, err := r.options.Bool(key, fallback)
	r.record(err)
	return value
}

func (r *optionReader) list(key string, fallback []string) []string {
	value, err := r.options.Strings(key, fallback)
	r.record(err)
	return value
}
