// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Options holds a request's per-kind overrides. Numbers are kept as
// json.Number so integers survive unchanged. A key that is absent or
// null takes the accessor's default.
type Options map[string]any

// OptionError reports an option whose value has the wrong type.
type OptionError struct {
	Key   string
	Want  string
	Value any
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q: want %s, got %v (%T)", e.Key, e.Want, e.Value, e.Value)
}

func decodeOptions(raw json.RawMessage) (Options, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Options{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var options Options
	if err := decoder.Decode(&options); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	if options == nil {
		options = Options{}
	}
	return options, nil
}

func (o Options) lookup(key string) (any, bool) {
	value, ok := o[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// Int returns an integer option. Integral floats such as 20.0 are
// accepted. Values outside the int64 range are an error, never wrapped.
func (o Options) Int(key string, fallback int64) (int64, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer, nil
		}
		if float, err := typed.Float64(); err == nil && fitsInt64(float) {
			return int64(float), nil
		}
	case int:
		return int64(typed), nil
	case int64:
		return typed, nil
	case float64:
		if fitsInt64(typed) {
			return int64(typed), nil
		}
	}
	return 0, &OptionError{Key: key, Want: "integer", Value: value}
}

// Uint returns a non-negative integer option covering the full uint64
// range, as used for sampler seeds.
func (o Options) Uint(key string, fallback uint64) (uint64, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	switch typed := value.(type) {
	case json.Number:
		if integer, err := strconv.ParseUint(typed.String(), 10, 64); err == nil {
			return integer, nil
		}
		if float, err := typed.Float64(); err == nil && fitsUint64(float) {
			return uint64(float), nil
		}
	case int:
		if typed >= 0 {
			return uint64(typed), nil
		}
	case int64:
		if typed >= 0 {
			return uint64(typed), nil
		}
	case uint64:
		return typed, nil
	case float64:
		if fitsUint64(typed) {
			return uint64(typed), nil
		}
	}
	return 0, &OptionError{Key: key, Want: "unsigned integer", Value: value}
}

// 2^63 and 2^64 are exact in float64; both bounds are exclusive.
const (
	int64Bound  = 1 << 63
	uint64Bound = 1 << 64
)

func fitsInt64(float float64) bool {
	return float == math.Trunc(float) && float >= -int64Bound && float < int64Bound
}

func fitsUint64(float float64) bool {
	return float == math.Trunc(float) && float >= 0 && float < uint64Bound
}

// Float returns a numeric option.
func (o Options) Float(key string, fallback float64) (float64, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	switch typed := value.(type) {
	case json.Number:
		if float, err := typed.Float64(); err == nil {
			return float, nil
		}
	case float64:
		return typed, nil
	case int:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	}
	return 0, &OptionError{Key: key, Want: "number", Value: value}
}

// String returns a string option.
func (o Options) String(key, fallback string) (string, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	if text, ok := value.(string); ok {
		return text, nil
	}
	return "", &OptionError{Key: key, Want: "string", Value: value}
}

// Bool returns a boolean option.
func (o Options) Bool(key string, fallback bool) (bool, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	if flag, ok := value.(bool); ok {
		return flag, nil
	}
	return false, &OptionError{Key: key, Want: "boolean", Value: value}
}

// Strings returns a list-of-strings option in its original order.
func (o Options) Strings(key string, fallback []string) ([]string, error) {
	value, ok := o.lookup(key)
	if !ok {
		return fallback, nil
	}
	switch typed := value.(type) {
	case []string:
		return typed, nil
	case []any:
		result := make([]string, 0, len(typed))
		for _, element := range typed {
			text, ok := element.(string)
			if !ok {
				return nil, &OptionError{Key: key, Want: "list of strings", Value: value}
			}
			result = append(result, text)
		}
		return result, nil
	}
	return nil, &OptionError{Key: key, Want: "list of strings", Value: value}
}
