// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope discriminants.
const (
	TypeInferenceRequest    = "inference_request"
	TypeInferenceResponse   = "inference_response"
	TypeServiceAnnouncement = "service_announcement"
)

// PriorityNormal is the priority used for every message the node sends.
const PriorityNormal = "normal"

// InboundMessage is one message returned by a mesh poll. Content holds
// the transport's raw "content" value (normally a JSON string carrying
// an envelope). Every other transport field is kept in Metadata.
type InboundMessage struct {
	Sender   string
	Content  json.RawMessage
	Metadata map[string]json.RawMessage
}

// UnmarshalJSON accepts any transport object. It fails only when data
// is not a JSON object or the sender is not a string. A message that
// fails has no one to answer; batch decoders drop it and keep the rest.
func (m *InboundMessage) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("protocol: inbound message is not an object: %w", err)
	}

	*m = InboundMessage{}
	if raw, ok := fields["sender"]; ok {
		if err := json.Unmarshal(raw, &m.Sender); err != nil {
			return fmt.Errorf("protocol: inbound message sender: %w", err)
		}
		delete(fields, "sender")
	}
	if raw, ok := fields["content"]; ok {
		m.Content = raw
		delete(fields, "content")
	}
	if len(fields) > 0 {
		m.Metadata = fields
	}
	return nil
}

// MarshalJSON writes the message back in transport form.
func (m InboundMessage) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(m.Metadata)+2)
	for key, value := range m.Metadata {
		fields[key] = value
	}
	sender, err := json.Marshal(m.Sender)
	if err != nil {
		return nil, err
	}
	fields["sender"] = sender
	if m.Content != nil {
		fields["content"] = m.Content
	}
	return json.Marshal(fields)
}

// Announcement is the service advertisement broadcast after
// registration.
type Announcement struct {
	Type                string   `json:"type"`
	Service             string   `json:"service"`
	Capabilities        []string `json:"capabilities"`
	Endpoint            string   `json:"endpoint"`
	APIEndpoint         string   `json:"api_endpoint"`
	DistributedEndpoint string   `json:"distributed_endpoint"`
	Status              string   `json:"status"`
	GPU                 string   `json:"gpu,omitempty"`
}
