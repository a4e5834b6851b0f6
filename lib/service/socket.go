// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/inference-node/lib/codec"
)

// ActionFunc handles one control action. The raw parameter is the full
// CBOR request, including the "action" field; the handler decodes its
// own action-specific fields from it.
//
// Return a value to include in the success response, or an error for a
// failure response. A nil value produces {ok: true}. A non-nil value is
// marshaled as CBOR and placed in the response's "data" field. The
// error's text becomes the response's "error" field verbatim, so it
// should read well to an operator at a terminal.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope of every socket response. Handlers
// never build one directly: they return a result and an error, and the
// server wraps those into a Response before encoding. Data stays raw so
// the client can decode it into the caller's own result type.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer serves a CBOR request-response protocol on a Unix
// socket. Each connection carries exactly one cycle: the client writes
// one CBOR value, the server dispatches it and writes one CBOR
// response, then the connection closes. CBOR values are
// self-delimiting, so neither side needs length prefixes or newlines.
//
// Actions are registered with Handle before calling Serve. A request
// naming an unregistered action, or naming none, receives an error
// response rather than a dropped connection.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger

	activeConnections sync.WaitGroup
	ready             chan struct{}
	readyOnce         sync.Once
}

// NewSocketServer creates a server for socketPath. Register actions
// with Handle before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers handler for action. It must be called before Serve;
// the handler map is read without locking once connections arrive.
// Registering the same action twice panics, since it can only be a
// wiring mistake.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// Ready returns a channel that is closed once the socket is listening.
// Tests wait on it instead of polling for the socket file.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections on the Unix socket and dispatches each
// request to its registered handler. It blocks until ctx is cancelled,
// then stops accepting new connections and waits for active handlers
// to finish before returning.
//
// A socket file left at the configured path by an earlier process is
// removed before listening. The socket file is removed again on return,
// so a clean shutdown leaves nothing behind.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

const (
	// readTimeout bounds the wait for the client's request. A
	// well-behaved client writes it immediately after connecting.
	readTimeout = 10 * time.Second

	// writeTimeout bounds writing the response back.
	writeTimeout = 10 * time.Second

	// maxRequestSize caps a single CBOR request. Control requests are a
	// handful of small fields; anything near this size is garbage.
	maxRequestSize = 64 * 1024
)

// handleConnection runs one request-response cycle. A client that
// connects and closes without writing is not an error and gets no
// response.
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, error: message}. Write failures are
// logged at debug level; the connection is closing either way.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true}, with result marshaled into "data" when
// it is non-nil. A result that cannot be marshaled turns into an error
// response instead.
func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
