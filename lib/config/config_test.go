// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnvironment isolates a test from the caller's BUREAU_INFERENCE_*
// variables.
func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvConfigPath, EnvMeshURL, EnvMeshAPIKey, EnvMeshKeyFile, EnvBackendURL, EnvNodeName} {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Mesh.URL != "http://localhost:4000" {
		t.Errorf("mesh.url = %q", cfg.Mesh.URL)
	}
	if cfg.Backend.URL != "http://localhost:8188" {
		t.Errorf("backend.url = %q", cfg.Backend.URL)
	}
	if cfg.Node.Name != "ComfyUI-Mesh-Agent" {
		t.Errorf("node.name = %q", cfg.Node.Name)
	}
	if len(cfg.Node.Capabilities) != 4 || cfg.Node.Capabilities[0] != "comfyui_inference" {
		t.Errorf("node.capabilities = %v", cfg.Node.Capabilities)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}

	timings, err := cfg.Timings()
	if err != nil {
		t.Fatalf("Timings: %v", err)
	}
	want := Timings{
		PollInterval:   10 * time.Second,
		ErrorBackoff:   30 * time.Second,
		PollTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
	if timings != want {
		t.Errorf("timings = %+v, want %+v", timings, want)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnvironment(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mesh.URL != Default().Mesh.URL {
		t.Errorf("mesh.url = %q, want default", cfg.Mesh.URL)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnvironment(t)

	path := writeFile(t, "node.yaml", `
log_level: debug
node:
  name: render-box
  gpu: RTX 4090
mesh:
  url: http://mesh.internal:4000
backend:
  url: https://gpu.internal:8188
loop:
  poll_interval: 2s
  ledger_size: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Node.Name != "render-box" || cfg.Node.GPU != "RTX 4090" {
		t.Errorf("node = %+v", cfg.Node)
	}
	if cfg.Mesh.URL != "http://mesh.internal:4000" {
		t.Errorf("mesh.url = %q", cfg.Mesh.URL)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Node.Endpoint != "http://localhost:18789" {
		t.Errorf("node.endpoint = %q, want default", cfg.Node.Endpoint)
	}
	if cfg.Loop.ErrorBackoff != "30s" {
		t.Errorf("loop.error_backoff = %q, want default", cfg.Loop.ErrorBackoff)
	}

	timings, err := cfg.Timings()
	if err != nil {
		t.Fatalf("Timings: %v", err)
	}
	if timings.PollInterval != 2*time.Second {
		t.Errorf("poll interval = %v", timings.PollInterval)
	}
}

func TestLoadJSONC(t *testing.T) {
	clearEnvironment(t)

	path := writeFile(t, "node.jsonc", `{
	// Comments and trailing commas are allowed.
	"node": {"name": "jsonc-node",},
	"backend": {"url": "http://127.0.0.1:9000"},
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Name != "jsonc-node" {
		t.Errorf("node.name = %q", cfg.Node.Name)
	}
	if cfg.Backend.URL != "http://127.0.0.1:9000" {
		t.Errorf("backend.url = %q", cfg.Backend.URL)
	}
}

func TestLoadFromEnvironmentPath(t *testing.T) {
	clearEnvironment(t)
	path := writeFile(t, "node.yml", "node:\n  name: from-env-path\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Node.Name != "from-env-path" {
		t.Errorf("node.name = %q", cfg.Node.Name)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnvironment(t)
	path := writeFile(t, "node.yaml", `
node:
  name: file-name
mesh:
  url: http://file-mesh:4000
`)
	t.Setenv(EnvMeshURL, "http://env-mesh:4000")
	t.Setenv(EnvBackendURL, "http://env-backend:8188")
	t.Setenv(EnvNodeName, "env-name")
	t.Setenv(EnvMeshAPIKey, "env-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mesh.URL != "http://env-mesh:4000" {
		t.Errorf("mesh.url = %q", cfg.Mesh.URL)
	}
	if cfg.Backend.URL != "http://env-backend:8188" {
		t.Errorf("backend.url = %q", cfg.Backend.URL)
	}
	if cfg.Node.Name != "env-name" {
		t.Errorf("node.name = %q", cfg.Node.Name)
	}
	if cfg.Mesh.APIKey != "env-key" {
		t.Errorf("mesh.api_key = %q", cfg.Mesh.APIKey)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnvironment(t)

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "node.toml", "x = 1", "unsupported extension"},
		{"malformed yaml", "node.yaml", "node: [unterminated", "parsing"},
		{"bad mesh url", "node.yaml", "mesh:\n  url: ftp://mesh\n", "mesh.url must be an http or https URL"},
		{"bad duration", "node.yaml", "loop:\n  poll_interval: soon\n", "loop.poll_interval"},
		{"zero duration", "node.yaml", "loop:\n  error_backoff: 0s\n", "loop.error_backoff must be positive"},
		{"bad log level", "node.yaml", "log_level: loud\n", "log_level must be one of"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := writeFile(t, test.file, test.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not contain %q", err, test.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

func TestExpandVariables(t *testing.T) {
	clearEnvironment(t)
	t.Setenv("INFERENCE_TEST_RUNTIME", "/run/test")

	path := writeFile(t, "node.yaml", `
control:
  socket_path: ${INFERENCE_TEST_RUNTIME}/node.sock
mesh:
  api_key_file: ${INFERENCE_TEST_UNSET:-/etc/inference}/key
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.SocketPath != "/run/test/node.sock" {
		t.Errorf("socket_path = %q", cfg.Control.SocketPath)
	}
	if cfg.Mesh.APIKeyFile != "/etc/inference/key" {
		t.Errorf("api_key_file = %q", cfg.Mesh.APIKeyFile)
	}
}

func TestAPIKey(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		cfg := Default()
		cfg.Mesh.APIKey = "inline-key"
		buffer, err := cfg.APIKey()
		if err != nil {
			t.Fatalf("APIKey: %v", err)
		}
		defer buffer.Close()
		if buffer.String() != "inline-key" {
			t.Errorf("key = %q", buffer.String())
		}
	})

	t.Run("file takes precedence", func(t *testing.T) {
		cfg := Default()
		cfg.Mesh.APIKey = "inline-key"
		cfg.Mesh.APIKeyFile = writeFile(t, "key", "file-key\n")
		buffer, err := cfg.APIKey()
		if err != nil {
			t.Fatalf("APIKey: %v", err)
		}
		defer buffer.Close()
		if buffer.String() != "file-key" {
			t.Errorf("key = %q", buffer.String())
		}
	})

	t.Run("none configured", func(t *testing.T) {
		cfg := Default()
		cfg.Mesh.APIKey = ""
		if _, err := cfg.APIKey(); err == nil {
			t.Fatal("expected error")
		}
	})
}
