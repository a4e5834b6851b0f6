// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the inference node's configuration.
//
// Values are layered in a fixed order with no discovery: [Default],
// then at most one file (the --config flag or BUREAU_INFERENCE_CONFIG),
// then a small set of BUREAU_INFERENCE_* environment overrides for the
// values operators commonly change per host. Files ending in .yaml or
// .yml are parsed as YAML; .json and .jsonc files are parsed as JSON
// with comments and trailing commas allowed.
//
// Durations are written as Go duration strings ("10s", "1m30s") and
// parsed by [Config.Timings]. Path fields expand ${HOME} and
// ${VAR:-default} patterns after loading.
//
// The mesh API key never lives in a plain string past [Config.APIKey]:
// it is copied into a [secret.Buffer] and the caller owns its lifetime.
package config
