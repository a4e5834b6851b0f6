// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the outcome of one inference request.
type Status string

const (
	StatusQueued            Status = "queued"
	StatusDistributedQueued Status = "distributed_queued"
	StatusError             Status = "error"
)

// Result is produced exactly once per inference request. PromptID is
// set iff Status is not StatusError; Error is set iff it is.
type Result struct {
	Status      Status `json:"status"`
	PromptID    string `json:"prompt_id,omitempty"`
	WorkerCount int    `json:"worker_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Queued is the result of a successful single-backend submission.
func Queued(promptID string) Result {
	return Result{Status: StatusQueued, PromptID: promptID}
}

// DistributedQueued is the result of a successful distributed
// submission.
func DistributedQueued(promptID string, workerCount int) Result {
	return Result{Status: StatusDistributedQueued, PromptID: promptID, WorkerCount: workerCount}
}

// Failed is an error result carrying detail for the requester.
func Failed(detail string) Result {
	return Result{Status: StatusError, Error: detail}
}

// Validate checks the presence rules tying fields to Status.
func (r Result) Validate() error {
	switch r.Status {
	case StatusQueued, StatusDistributedQueued:
		if r.PromptID == "" {
			return fmt.Errorf("protocol: %s result without prompt_id", r.Status)
		}
		if r.Error != "" {
			return fmt.Errorf("protocol: %s result carries error %q", r.Status, r.Error)
		}
	case StatusError:
		if r.Error == "" {
			return errors.New("protocol: error result without detail")
		}
		if r.PromptID != "" {
			return errors.New("protocol: error result carries prompt_id")
		}
	default:
		return fmt.Errorf("protocol: unknown result status %q", r.Status)
	}
	return nil
}

// ResponseEnvelope answers one request. OriginalRequest is the request
// envelope as received.
type ResponseEnvelope struct {
	Type            string          `json:"type"`
	OriginalRequest json.RawMessage `json:"original_request"`
	Response        Result          `json:"response"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
}

// OutboundResponse is one reply to send back to a requester.
type OutboundResponse struct {
	Recipient string
	Priority  string
	Envelope  ResponseEnvelope
}

// NewResponse builds the reply to msg carrying result.
func NewResponse(msg InboundMessage, request *Request, result Result) OutboundResponse {
	return OutboundResponse{
		Recipient: msg.Sender,
		Priority:  PriorityNormal,
		Envelope: ResponseEnvelope{
			Type:            TypeInferenceResponse,
			OriginalRequest: request.Raw,
			Response:        result,
			CorrelationID:   CorrelationID(msg.Sender, request.Raw),
		},
	}
}

// EncodeContent renders the envelope as the JSON string carried in the
// transport's content field.
func (r OutboundResponse) EncodeContent() (string, error) {
	data, err := json.Marshal(r.Envelope)
	if err != nil {
		return "", fmt.Errorf("protocol: encoding response envelope: %w", err)
	}
	return string(data), nil
}

// DecodeResponse parses a response envelope from transport content,
// string-encoded or inline.
func DecodeResponse(content json.RawMessage) (*ResponseEnvelope, error) {
	object, err := envelopeObject(content)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	var envelope ResponseEnvelope
	if err := json.Unmarshal(object, &envelope); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if envelope.Type != TypeInferenceResponse {
		return nil, &DecodeError{Err: fmt.Errorf("type %q is not %s", envelope.Type, TypeInferenceResponse)}
	}
	return &envelope, nil
}
