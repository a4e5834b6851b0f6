// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the node's local control socket.
//
// The protocol is one CBOR request and one CBOR response per Unix
// socket connection. A request is a map with an "action" field plus
// action-specific fields; the response is a [Response] envelope
// {ok, error?, data?}. CBOR is self-delimiting, so no framing is
// needed. [SocketServer] dispatches actions to registered handlers and
// [ServiceClient] is the matching caller used by the status command.
package service
