// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/inference-node/lib/service"
	"github.com/bureau-foundation/inference-node/node"
	"github.com/bureau-foundation/inference-node/protocol"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand string
		wantConfig  string
		wantLimit   int
		wantHelp    bool
		wantErr     bool
	}{
		{
			name:      "no arguments runs the node",
			args:      nil,
			wantLimit: 20,
		},
		{
			name:       "config flag",
			args:       []string{"--config", "/etc/bureau/inference.yaml"},
			wantConfig: "/etc/bureau/inference.yaml",
			wantLimit:  20,
		},
		{
			name:        "status subcommand",
			args:        []string{"status"},
			wantCommand: "status",
			wantLimit:   20,
		},
		{
			name:        "recent with limit",
			args:        []string{"recent", "--limit", "5"},
			wantCommand: "recent",
			wantLimit:   5,
		},
		{
			name:        "stop subcommand",
			args:        []string{"--socket", "/tmp/x.sock", "stop"},
			wantCommand: "stop",
			wantLimit:   20,
		},
		{
			name:      "help flag",
			args:      []string{"-h"},
			wantHelp:  true,
			wantLimit: 20,
		},
		{
			name:    "unknown subcommand",
			args:    []string{"restart"},
			wantErr: true,
		},
		{
			name:    "extra arguments",
			args:    []string{"status", "now"},
			wantErr: true,
		},
		{
			name:    "negative limit",
			args:    []string{"recent", "--limit=-1"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--gpu", "7900"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts, _, err := parseArgs(test.args)
			if test.wantErr {
				if err == nil {
					t.Fatalf("parseArgs(%v) succeeded, want error", test.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseArgs(%v): %v", test.args, err)
			}
			if opts.command != test.wantCommand {
				t.Errorf("command = %q, want %q", opts.command, test.wantCommand)
			}
			if opts.configPath != test.wantConfig {
				t.Errorf("configPath = %q, want %q", opts.configPath, test.wantConfig)
			}
			if opts.help != test.wantHelp {
				t.Errorf("help = %v, want %v", opts.help, test.wantHelp)
			}
			if !test.wantHelp && opts.limit != test.wantLimit {
				t.Errorf("limit = %d, want %d", opts.limit, test.wantLimit)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := parseLevel(name)
		if err != nil {
			t.Errorf("parseLevel(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("parseLevel(\"loud\") succeeded, want error")
	}
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--version"}, &out); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(out.String(), binaryName+" ") {
		t.Errorf("version output = %q, want prefix %q", out.String(), binaryName+" ")
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--help"}, &out); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	for _, want := range []string{"Usage:", "--config", "recent"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, out.String())
		}
	}
}

// fakeCaller answers control calls from canned values.
type fakeCaller struct {
	status  node.Status
	entries []node.Entry
	err     error

	actions []string
	fields  []map[string]any
}

func (f *fakeCaller) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	f.actions = append(f.actions, action)
	f.fields = append(f.fields, fields)
	if f.err != nil {
		return f.err
	}
	switch target := result.(type) {
	case *node.Status:
		*target = f.status
	case *[]node.Entry:
		*target = f.entries
	}
	return nil
}

func TestRunControlStatus(t *testing.T) {
	caller := &fakeCaller{status: node.Status{
		Name:         "ComfyUI-Mesh-Agent",
		NodeID:       "agent-7",
		Endpoint:     "http://localhost:18789",
		Capabilities: []string{"image_generation", "video_generation"},
		State:        "polling",
		Counters:     node.Counters{Polls: 12, Received: 3, Answered: 3, Failed: 1},
	}}

	var out bytes.Buffer
	if err := runControl(context.Background(), &out, caller, &options{command: node.ActionStatus}); err != nil {
		t.Fatalf("runControl: %v", err)
	}
	for _, want := range []string{"agent-7", "polling", "image_generation, video_generation", "3 (1 errors)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunControlRecent(t *testing.T) {
	caller := &fakeCaller{entries: []node.Entry{{
		Time:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Sender:   "planner",
		Kind:     protocol.KindImage,
		Outcome:  node.OutcomeAnswered,
		Status:   protocol.StatusQueued,
		PromptID: "p-42",
	}}}

	var out bytes.Buffer
	if err := runControl(context.Background(), &out, caller, &options{command: node.ActionRecent, limit: 5}); err != nil {
		t.Fatalf("runControl: %v", err)
	}
	if got := caller.fields[0]["limit"]; got != 5 {
		t.Errorf("limit sent = %v, want 5", got)
	}
	for _, want := range []string{"2026-03-01T12:00:00Z", "planner", "image_generation", "answered", "p-42"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("recent output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunControlRecentEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := runControl(context.Background(), &out, &fakeCaller{}, &options{command: node.ActionRecent}); err != nil {
		t.Fatalf("runControl: %v", err)
	}
	if !strings.Contains(out.String(), "no dispatches recorded") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunControlError(t *testing.T) {
	caller := &fakeCaller{err: &service.ServiceError{Action: "stop", Message: "busy"}}
	err := runControl(context.Background(), &bytes.Buffer{}, caller, &options{command: node.ActionStop})
	var serviceError *service.ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("runControl error = %v, want *service.ServiceError", err)
	}
}
