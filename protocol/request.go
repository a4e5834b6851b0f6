// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names a unit of inference work.
type Kind string

const (
	KindImage       Kind = "image_generation"
	KindVideo       Kind = "video_generation"
	KindDistributed Kind = "distributed_inference"
)

// Kinds lists every kind the node serves.
var Kinds = []Kind{KindImage, KindVideo, KindDistributed}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Request is a decoded content envelope. Only envelopes whose Type is
// TypeInferenceRequest carry meaningful RequestType, Prompt, and
// Options.
type Request struct {
	Type        string
	RequestType Kind
	Prompt      json.RawMessage
	Options     Options

	// Raw is the envelope object exactly as received. It is embedded
	// in the response as original_request.
	Raw json.RawMessage
}

// IsInference reports whether the envelope asks for inference work.
func (r *Request) IsInference() bool {
	return r.Type == TypeInferenceRequest
}

// DecodeRequest parses the content of msg. The content may be a JSON
// string containing the envelope or the envelope object itself. Any
// failure is returned as a *DecodeError. The request kind is not
// checked here; see ParseKind.
func DecodeRequest(msg InboundMessage) (*Request, error) {
	object, err := envelopeObject(msg.Content)
	if err != nil {
		return nil, &DecodeError{Sender: msg.Sender, Err: err}
	}

	var head struct {
		Type        string          `json:"type"`
		RequestType json.RawMessage `json:"request_type"`
		Prompt      json.RawMessage `json:"prompt"`
		Options     json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(object, &head); err != nil {
		return nil, &DecodeError{Sender: msg.Sender, Err: err}
	}
	if head.Type == "" {
		return nil, &DecodeError{Sender: msg.Sender, Err: errors.New(`missing "type" discriminant`)}
	}

	request := &Request{Type: head.Type, Raw: object}
	if !request.IsInference() {
		return request, nil
	}

	options, err := decodeOptions(head.Options)
	if err != nil {
		return nil, &DecodeError{Sender: msg.Sender, Err: err}
	}
	request.RequestType = requestKind(head.RequestType)
	request.Prompt = head.Prompt
	request.Options = options
	return request, nil
}

// requestKind reads request_type. A value that is not a JSON string
// becomes a kind spelled as its JSON text, which ParseKind then rejects
// so the requester still gets an error result.
func requestKind(raw json.RawMessage) Kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var kind string
	if err := json.Unmarshal(trimmed, &kind); err == nil {
		return Kind(kind)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Kind(trimmed)
	}
	return Kind(compact.String())
}

// envelopeObject unwraps a string-encoded envelope and checks that the
// result is a JSON object.
func envelopeObject(content json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, errors.New("empty content")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("content string: %w", err)
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("content is not a JSON object")
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("content is not valid JSON")
	}
	return json.RawMessage(trimmed), nil
}

// ParseKind validates the request's kind. An unrecognized kind yields
// *UnknownKindError.
func ParseKind(request *Request) (Kind, error) {
	if !request.RequestType.Known() {
		return "", &UnknownKindError{Kind: request.RequestType}
	}
	return request.RequestType, nil
}
