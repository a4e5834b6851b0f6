// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/inference-node/lib/netutil"
	"github.com/bureau-foundation/inference-node/lib/secret"
	"github.com/bureau-foundation/inference-node/protocol"
)

// APIKeyHeader carries the shared secret on every request.
const APIKeyHeader = "X-API-Key"

// Default per-call timeouts.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultPollTimeout = 5 * time.Second
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the mesh service root, e.g. "http://localhost:4000".
	BaseURL string
	// APIKey is the shared secret. The Client does not take ownership;
	// the caller closes the buffer after the Client is no longer used.
	APIKey *secret.Buffer
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Timeout bounds register, broadcast, and send. Zero means DefaultTimeout.
	Timeout time.Duration
	// PollTimeout bounds message polls. Zero means DefaultPollTimeout.
	PollTimeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to one mesh service.
type Client struct {
	baseURL     string
	apiKey      *secret.Buffer
	httpClient  *http.Client
	timeout     time.Duration
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewClient creates a mesh client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("mesh: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("mesh: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if config.APIKey == nil {
		return nil, errors.New("mesh: APIKey is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pollTimeout := config.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		apiKey:      config.APIKey,
		httpClient:  httpClient,
		timeout:     timeout,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// RegisterRequest is the body of POST /api/agents/register.
type RegisterRequest struct {
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
}

// RegisterResponse is the mesh's answer to a registration.
type RegisterResponse struct {
	AgentID string `json:"agentId"`
}

// BroadcastRequest is the body of POST /api/broadcast. Content is a
// JSON document encoded as a string.
type BroadcastRequest struct {
	Content  string `json:"content"`
	Sender   string `json:"sender"`
	Priority string `json:"priority"`
}

// SendRequest is the body of POST /api/messages/send.
type SendRequest struct {
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Priority  string `json:"priority"`
}

// MessagesResponse is the body of GET /api/messages/{agentId}. Each
// element is decoded on its own so one bad message costs only itself.
type MessagesResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

// Register registers an agent and returns its assigned id. A success
// response without an id is an error.
func (c *Client) Register(ctx context.Context, request RegisterRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.doRequest(ctx, http.MethodPost, "/api/agents/register", request)
	if err != nil {
		return "", err
	}
	var response RegisterResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("mesh: decoding register response: %w", err)
	}
	if response.AgentID == "" {
		return "", errors.New("mesh: register response has no agentId")
	}
	return response.AgentID, nil
}

// Broadcast posts a message to every agent on the mesh.
func (c *Client) Broadcast(ctx context.Context, request BroadcastRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.doRequest(ctx, http.MethodPost, "/api/broadcast", request)
	return err
}

// Messages fetches the pending messages for agentID.
func (c *Client) Messages(ctx context.Context, agentID string) ([]protocol.InboundMessage, error) {
	if agentID == "" {
		return nil, errors.New("mesh: agent id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	body, err := c.doRequest(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(agentID), nil)
	if err != nil {
		return nil, err
	}
	var response MessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("mesh: decoding messages: %w", err)
	}

	messages := make([]protocol.InboundMessage, 0, len(response.Messages))
	for index, raw := range response.Messages {
		var message protocol.InboundMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			c.logger.Warn("dropping undecodable message",
				"agent_id", agentID,
				"index", index,
				"error", err,
			)
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// Send delivers a message to one agent.
func (c *Client) Send(ctx context.Context, request SendRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.doRequest(ctx, http.MethodPost, "/api/messages/send", request)
	return err
}

// doRequest performs one authenticated JSON request and returns the
// response body of a 2xx answer.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("mesh: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("mesh: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set(APIKeyHeader, c.apiKey.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &netutil.TransportError{Op: method + " " + path, Err: err}
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &netutil.TransportError{Op: method + " " + path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: response.StatusCode}
		var structured struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(responseBody, &structured) == nil && structured.Error != "" {
			apiErr.Message = structured.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(responseBody))
		}
		return nil, apiErr
	}
	return responseBody, nil
}
