// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/inference-node/jobgraph"
	"github.com/bureau-foundation/inference-node/lib/netutil"
	"github.com/bureau-foundation/inference-node/protocol"
)

// Queue endpoints.
const (
	PromptPath      = "/api/prompt"
	DistributedPath = "/distributed/queue"
)

// DefaultTimeout bounds a submission when ClientConfig.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the backend's root URL, e.g. "http://localhost:8188".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Timeout bounds each submission. Zero means DefaultTimeout.
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client submits jobs to one backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a backend client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("backend: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// BaseURL returns the backend root URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type promptRequest struct {
	Prompt   json.RawMessage `json:"prompt"`
	ClientID string          `json:"client_id"`
}

type distributedRequest struct {
	Prompt           json.RawMessage `json:"prompt"`
	ClientID         string          `json:"client_id"`
	DelegateMaster   bool            `json:"delegate_master"`
	EnabledWorkerIDs []string        `json:"enabled_worker_ids"`
}

type queueResponse struct {
	PromptID    string `json:"prompt_id"`
	WorkerCount *int   `json:"worker_count"`
}

// Submit queues job and reports the outcome. It never fails: errors are
// logged and returned as an error Result.
func (c *Client) Submit(ctx context.Context, job *jobgraph.Job) protocol.Result {
	result, err := c.Queue(ctx, job)
	if err != nil {
		c.logger.Warn("backend submission failed",
			"kind", job.Kind,
			"client_id", job.ClientID,
			"error", err,
		)
		var submissionErr *SubmissionError
		if errors.As(err, &submissionErr) {
			return protocol.Failed(submissionErr.Detail())
		}
		return protocol.Failed(err.Error())
	}
	c.logger.Info("job queued",
		"kind", job.Kind,
		"prompt_id", result.PromptID,
		"status", result.Status,
	)
	return result
}

// Queue posts job to the matching endpoint. Failures are returned as
// *SubmissionError.
func (c *Client) Queue(ctx context.Context, job *jobgraph.Job) (protocol.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if job.Distributed != nil {
		workers := job.Distributed.WorkerIDs
		if workers == nil {
			workers = []string{}
		}
		body := distributedRequest{
			Prompt:           job.Prompt,
			ClientID:         job.ClientID,
			DelegateMaster:   job.Distributed.DelegateMaster,
			EnabledWorkerIDs: workers,
		}
		response, err := c.post(ctx, DistributedPath, body)
		if err != nil {
			return protocol.Result{}, err
		}
		workerCount := 1
		if response.WorkerCount != nil {
			workerCount = *response.WorkerCount
		}
		return protocol.DistributedQueued(response.PromptID, workerCount), nil
	}

	response, err := c.post(ctx, PromptPath, promptRequest{Prompt: job.Prompt, ClientID: job.ClientID})
	if err != nil {
		return protocol.Result{}, err
	}
	return protocol.Queued(response.PromptID), nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*queueResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &SubmissionError{Endpoint: path, Err: fmt.Errorf("encoding request: %w", err)}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &SubmissionError{Endpoint: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &SubmissionError{
			Endpoint: path,
			Err:      &netutil.TransportError{Op: "POST " + path, Err: err},
		}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &SubmissionError{
			Endpoint:   path,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}

	var decoded queueResponse
	if err := netutil.DecodeResponse(response.Body, &decoded); err != nil {
		return nil, &SubmissionError{Endpoint: path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if decoded.PromptID == "" {
		return nil, &SubmissionError{Endpoint: path, Err: errors.New("response has no prompt_id")}
	}
	return &decoded, nil
}
