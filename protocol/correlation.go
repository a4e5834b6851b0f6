// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// CorrelationID derives a stable identifier for a request from its
// sender and envelope bytes. Redelivery of the same request yields the
// same id.
func CorrelationID(sender string, envelope []byte) string {
	hasher := blake3.New()
	hasher.Write([]byte(sender))
	hasher.Write([]byte{0})
	hasher.Write(envelope)
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
