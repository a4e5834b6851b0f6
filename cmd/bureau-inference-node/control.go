// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/inference-node/node"
)

// controlCaller is the part of service.ServiceClient the subcommands use.
type controlCaller interface {
	Call(ctx context.Context, action string, fields map[string]any, result any) error
}

func runControl(ctx context.Context, stdout io.Writer, client controlCaller, opts *options) error {
	switch opts.command {
	case node.ActionStatus:
		var status node.Status
		if err := client.Call(ctx, node.ActionStatus, nil, &status); err != nil {
			return err
		}
		printStatus(stdout, status)
	case node.ActionRecent:
		var entries []node.Entry
		if err := client.Call(ctx, node.ActionRecent, map[string]any{"limit": opts.limit}, &entries); err != nil {
			return err
		}
		printRecent(stdout, entries)
	case node.ActionStop:
		if err := client.Call(ctx, node.ActionStop, nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "stop requested")
	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
	return nil
}

func printStatus(w io.Writer, status node.Status) {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	nodeID := status.NodeID
	if nodeID == "" {
		nodeID = "(unregistered)"
	}
	fmt.Fprintf(writer, "Name:\t%s\n", status.Name)
	fmt.Fprintf(writer, "Node ID:\t%s\n", nodeID)
	fmt.Fprintf(writer, "Endpoint:\t%s\n", status.Endpoint)
	fmt.Fprintf(writer, "Capabilities:\t%s\n", strings.Join(status.Capabilities, ", "))
	fmt.Fprintf(writer, "State:\t%s\n", status.State)
	if status.InFlight != nil {
		fmt.Fprintf(writer, "In flight:\t%s from %s\n", status.InFlight.Kind, status.InFlight.Sender)
	}

	counters := status.Counters
	fmt.Fprintf(writer, "Polls:\t%d (%d failed)\n", counters.Polls, counters.CycleFailures)
	fmt.Fprintf(writer, "Received:\t%d\n", counters.Received)
	fmt.Fprintf(writer, "Answered:\t%d (%d errors)\n", counters.Answered, counters.Failed)
	fmt.Fprintf(writer, "Undelivered:\t%d\n", counters.Undelivered)
	fmt.Fprintf(writer, "Ignored:\t%d\n", counters.Ignored)
	fmt.Fprintf(writer, "Malformed:\t%d\n", counters.Malformed)
	fmt.Fprintf(writer, "Panicked:\t%d\n", counters.Panicked)
	writer.Flush()
}

func printRecent(w io.Writer, entries []node.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no dispatches recorded")
		return
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "TIME\tSENDER\tKIND\tOUTCOME\tSTATUS\tPROMPT\tDETAIL")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Time.UTC().Format(time.RFC3339),
			entry.Sender,
			orDash(string(entry.Kind)),
			entry.Outcome,
			orDash(string(entry.Status)),
			orDash(entry.PromptID),
			entry.Detail,
		)
	}
	writer.Flush()
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
