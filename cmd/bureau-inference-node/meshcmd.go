// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/bureau-foundation/inference-node/lib/config"
	"github.com/bureau-foundation/inference-node/mesh"
)

func runMeshCommand(ctx context.Context, stdout io.Writer, cfg *config.Config, logger *slog.Logger, opts *options) error {
	timings, err := cfg.Timings()
	if err != nil {
		return err
	}
	apiKey, err := cfg.APIKey()
	if err != nil {
		return fmt.Errorf("reading mesh API key: %w", err)
	}
	defer apiKey.Close()

	client, err := newMeshClient(cfg, timings, apiKey, logger)
	if err != nil {
		return err
	}
	return runMesh(ctx, stdout, client, opts)
}

func runMesh(ctx context.Context, stdout io.Writer, client *mesh.Client, opts *options) error {
	switch opts.command {
	case commandAgents:
		agents, err := client.Agents(ctx)
		if err != nil {
			return err
		}
		printAgents(stdout, agents)
	case commandHealth:
		if len(opts.args) == 1 {
			agent, err := client.AgentStatus(ctx, opts.args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %s\n", agent.Name, orDash(agent.Status))
			return nil
		}
		health, err := client.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Mesh status: %s\n", orDash(health.Status))
	case commandSend:
		recipient, message := opts.args[0], strings.Join(opts.args[1:], " ")
		if err := client.Message(ctx, recipient, message); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "message sent to %s\n", recipient)
	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
	return nil
}

func printAgents(w io.Writer, agents []mesh.Agent) {
	if len(agents) == 0 {
		fmt.Fprintln(w, "no agents registered")
		return
	}
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tSTATUS\tLAST SEEN\tCAPABILITIES")
	for _, agent := range agents {
		lastSeen := agent.LastSeen
		if lastSeen == "" {
			lastSeen = "never"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			orDash(agent.Name),
			orDash(agent.Status),
			lastSeen,
			orDash(strings.Join(agent.Capabilities, ",")),
		)
	}
	writer.Flush()
}
