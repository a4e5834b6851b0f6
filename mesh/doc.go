// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mesh is a client for the agent mesh's REST API: agent
// registration, broadcast, and per-agent message queues.
//
// Every request carries the shared secret in the X-API-Key header. The
// key is held in a [secret.Buffer] owned by the caller. Non-2xx
// responses are returned as [*APIError]; failures before a response
// arrives are [*netutil.TransportError]. Each call is bounded by the
// client's timeout (polls by a separate, shorter one).
package mesh
