// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/inference-node/lib/secret"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath  = "BUREAU_INFERENCE_CONFIG"
	EnvMeshURL     = "BUREAU_INFERENCE_MESH_URL"
	EnvMeshAPIKey  = "BUREAU_INFERENCE_MESH_API_KEY"
	EnvMeshKeyFile = "BUREAU_INFERENCE_MESH_API_KEY_FILE"
	EnvBackendURL  = "BUREAU_INFERENCE_BACKEND_URL"
	EnvNodeName    = "BUREAU_INFERENCE_NODE_NAME"
)

// Config is the complete node configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Node    NodeConfig    `yaml:"node" json:"node"`
	Mesh    MeshConfig    `yaml:"mesh" json:"mesh"`
	Backend BackendConfig `yaml:"backend" json:"backend"`
	Loop    LoopConfig    `yaml:"loop" json:"loop"`
	Control ControlConfig `yaml:"control" json:"control"`
}

// NodeConfig describes how the node presents itself on the mesh.
type NodeConfig struct {
	// Name is the display name used at registration and as the sender
	// of every outbound message.
	Name string `yaml:"name" json:"name"`

	// Endpoint is the URL the mesh records for this node.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Capabilities are the tags sent at registration.
	Capabilities []string `yaml:"capabilities" json:"capabilities"`

	// AnnounceCapabilities are the tags carried in the service
	// announcement broadcast after registration.
	AnnounceCapabilities []string `yaml:"announce_capabilities" json:"announce_capabilities"`

	// GPU is an optional hardware description included in the
	// announcement.
	GPU string `yaml:"gpu" json:"gpu"`
}

// MeshConfig locates the mesh coordination service.
type MeshConfig struct {
	URL string `yaml:"url" json:"url"`

	// APIKey is the shared secret sent as X-API-Key. APIKeyFile takes
	// precedence when both are set.
	APIKey     string `yaml:"api_key" json:"api_key"`
	APIKeyFile string `yaml:"api_key_file" json:"api_key_file"`
}

// BackendConfig locates the inference backend.
type BackendConfig struct {
	URL string `yaml:"url" json:"url"`
}

// LoopConfig holds dispatch loop timings as duration strings.
type LoopConfig struct {
	PollInterval   string `yaml:"poll_interval" json:"poll_interval"`
	ErrorBackoff   string `yaml:"error_backoff" json:"error_backoff"`
	PollTimeout    string `yaml:"poll_timeout" json:"poll_timeout"`
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	// LedgerSize bounds the number of recent dispatches kept for the
	// control socket.
	LedgerSize int `yaml:"ledger_size" json:"ledger_size"`
}

// ControlConfig configures the local control socket. An empty
// SocketPath disables it.
type ControlConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
}

// Timings is the parsed form of LoopConfig.
type Timings struct {
	PollInterval   time.Duration
	ErrorBackoff   time.Duration
	PollTimeout    time.Duration
	RequestTimeout time.Duration
}

// DefaultSocketPath is the control socket used when none is configured.
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "bureau-inference-node.sock")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Node: NodeConfig{
			Name:     "ComfyUI-Mesh-Agent",
			Endpoint: "http://localhost:18789",
			Capabilities: []string{
				"comfyui_inference",
				"image_generation",
				"video_generation",
				"distributed_inference",
			},
			AnnounceCapabilities: []string{
				"image_generation",
				"video_generation",
				"distributed_inference",
				"multi_gpu_processing",
			},
		},
		Mesh: MeshConfig{
			URL:    "http://localhost:4000",
			APIKey: "openclaw-mesh-default-key",
		},
		Backend: BackendConfig{
			URL: "http://localhost:8188",
		},
		Loop: LoopConfig{
			PollInterval:   "10s",
			ErrorBackoff:   "30s",
			PollTimeout:    "5s",
			RequestTimeout: "10s",
			LedgerSize:     256,
		},
		Control: ControlConfig{
			SocketPath: DefaultSocketPath(),
		},
	}
}

// Load builds the configuration from defaults, the file at path (or
// BUREAU_INFERENCE_CONFIG when path is empty), and environment
// overrides. With neither a path nor the variable set, only defaults
// and environment overrides apply. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvironment(os.Getenv)
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges a single file into c. Fields absent from the file
// keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: %s: unsupported extension (want .yaml, .yml, .json, or .jsonc)", path)
	}
	return nil
}

// applyEnvironment overlays the BUREAU_INFERENCE_* overrides. An unset
// or empty variable leaves the value alone.
func (c *Config) applyEnvironment(getenv func(string) string) {
	if value := getenv(EnvMeshURL); value != "" {
		c.Mesh.URL = value
	}
	if value := getenv(EnvMeshAPIKey); value != "" {
		c.Mesh.APIKey = value
	}
	if value := getenv(EnvMeshKeyFile); value != "" {
		c.Mesh.APIKeyFile = value
	}
	if value := getenv(EnvBackendURL); value != "" {
		c.Backend.URL = value
	}
	if value := getenv(EnvNodeName); value != "" {
		c.Node.Name = value
	}
}

func (c *Config) expandVariables() {
	c.Mesh.APIKeyFile = expandVars(c.Mesh.APIKeyFile)
	c.Control.SocketPath = expandVars(c.Control.SocketPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Timings parses the loop durations.
func (c *Config) Timings() (Timings, error) {
	var timings Timings
	var errs []error

	parse := func(field, value string, target *time.Duration) {
		duration, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("loop.%s: %w", field, err))
			return
		}
		if duration <= 0 {
			errs = append(errs, fmt.Errorf("loop.%s must be positive, got %s", field, value))
			return
		}
		*target = duration
	}
	parse("poll_interval", c.Loop.PollInterval, &timings.PollInterval)
	parse("error_backoff", c.Loop.ErrorBackoff, &timings.ErrorBackoff)
	parse("poll_timeout", c.Loop.PollTimeout, &timings.PollTimeout)
	parse("request_timeout", c.Loop.RequestTimeout, &timings.RequestTimeout)

	if len(errs) > 0 {
		return Timings{}, errors.Join(errs...)
	}
	return timings, nil
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel))
	}

	if c.Node.Name == "" {
		errs = append(errs, errors.New("node.name is required"))
	}
	if err := validateURL("mesh.url", c.Mesh.URL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("backend.url", c.Backend.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Mesh.APIKey == "" && c.Mesh.APIKeyFile == "" {
		errs = append(errs, errors.New("mesh.api_key or mesh.api_key_file is required"))
	}
	if c.Loop.LedgerSize <= 0 {
		errs = append(errs, fmt.Errorf("loop.ledger_size must be positive, got %d", c.Loop.LedgerSize))
	}
	if _, err := c.Timings(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", field, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s has no host: %q", field, raw)
	}
	return nil
}

// APIKey returns the mesh shared secret in a protected buffer, read
// from APIKeyFile when set and from APIKey otherwise. The caller must
// Close the buffer.
func (c *Config) APIKey() (*secret.Buffer, error) {
	if c.Mesh.APIKeyFile != "" {
		return secret.ReadFromPath(c.Mesh.APIKeyFile)
	}
	if c.Mesh.APIKey == "" {
		return nil, errors.New("config: no mesh API key configured")
	}
	return secret.NewFromString(c.Mesh.APIKey)
}
