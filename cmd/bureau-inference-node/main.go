// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-inference-node joins an agent mesh as an inference worker. It
// registers with the mesh coordination service, announces its
// capabilities, and then polls for inference requests, translating each
// into a backend job graph, queueing it, and replying to the sender
// with the outcome.
//
// Usage:
//
//	bureau-inference-node [--config path] [--log-level level] [--socket path]
//	bureau-inference-node status [--socket path]
//	bureau-inference-node recent [--limit n] [--socket path]
//	bureau-inference-node stop [--socket path]
//	bureau-inference-node agents [--config path]
//	bureau-inference-node health [agent] [--config path]
//	bureau-inference-node send <agent> <message...> [--config path]
//
// The status, recent, and stop subcommands talk to a running node over
// its control socket. The agents, health, and send subcommands talk to
// the mesh service directly with the configured URL and API key.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inference-node/backend"
	"github.com/bureau-foundation/inference-node/lib/config"
	"github.com/bureau-foundation/inference-node/lib/process"
	"github.com/bureau-foundation/inference-node/lib/secret"
	"github.com/bureau-foundation/inference-node/lib/service"
	"github.com/bureau-foundation/inference-node/lib/version"
	"github.com/bureau-foundation/inference-node/mesh"
	"github.com/bureau-foundation/inference-node/node"
)

const binaryName = "bureau-inference-node"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// options is the parsed command line.
type options struct {
	configPath string
	logLevel   string
	socketPath string
	limit      int
	version    bool
	help       bool
	command    string
	args       []string
}

// Subcommands that query the mesh service instead of the control socket.
const (
	commandAgents = "agents"
	commandHealth = "health"
	commandSend   = "send"
)

func newFlagSet(opts *options) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML or JSONC config file (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.socketPath, "socket", "", "control socket path (default from config)")
	flagSet.IntVar(&opts.limit, "limit", 20, "number of entries for the recent subcommand (0 for all)")
	flagSet.BoolVar(&opts.version, "version", false, "print version information and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")
	return flagSet
}

func parseArgs(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flagSet := newFlagSet(opts)
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			opts.help = true
			return opts, flagSet, nil
		}
		return nil, nil, err
	}

	rest := flagSet.Args()
	if len(rest) > 0 {
		opts.command, opts.args = rest[0], rest[1:]
		if err := checkArity(opts.command, opts.args); err != nil {
			return nil, nil, err
		}
	}
	if opts.limit < 0 {
		return nil, nil, fmt.Errorf("--limit must not be negative, got %d", opts.limit)
	}
	return opts, flagSet, nil
}

func checkArity(command string, args []string) error {
	switch command {
	case node.ActionStatus, node.ActionRecent, node.ActionStop, commandAgents:
		if len(args) > 0 {
			return fmt.Errorf("%s: unexpected arguments: %v", command, args)
		}
	case commandHealth:
		if len(args) > 1 {
			return fmt.Errorf("health: at most one agent name, got %v", args)
		}
	case commandSend:
		if len(args) < 2 {
			return errors.New("send: usage: send <agent> <message...>")
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func isMeshCommand(command string) bool {
	return command == commandAgents || command == commandHealth || command == commandSend
}

func run(args []string, stdout io.Writer) error {
	opts, flagSet, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.version {
		version.Print(stdout, binaryName)
		return nil
	}
	if opts.help {
		printHelp(stdout, flagSet)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.socketPath != "" {
		cfg.Control.SocketPath = opts.socketPath
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if isMeshCommand(opts.command) {
		return runMeshCommand(ctx, stdout, cfg, logger, opts)
	}
	if opts.command != "" {
		if cfg.Control.SocketPath == "" {
			return errors.New("no control socket configured")
		}
		return runControl(ctx, stdout, service.NewServiceClient(cfg.Control.SocketPath), opts)
	}
	return serve(ctx, cfg, logger)
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	timings, err := cfg.Timings()
	if err != nil {
		return err
	}

	apiKey, err := cfg.APIKey()
	if err != nil {
		return fmt.Errorf("reading mesh API key: %w", err)
	}
	defer apiKey.Close()

	meshClient, err := newMeshClient(cfg, timings, apiKey, logger)
	if err != nil {
		return err
	}
	backendClient, err := backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.Backend.URL,
		Timeout: timings.RequestTimeout,
		Logger:  logger.With("component", "backend"),
	})
	if err != nil {
		return err
	}

	identity := node.NewIdentity(cfg.Node.Name, cfg.Node.Endpoint, cfg.Node.Capabilities)
	inferenceNode, err := node.New(node.Config{
		Identity: identity,
		Registry: node.NewMeshRegistry(node.MeshRegistryConfig{
			Client:       meshClient,
			BackendURL:   backendClient.BaseURL(),
			Capabilities: cfg.Node.AnnounceCapabilities,
			GPU:          cfg.Node.GPU,
		}),
		Channel:      node.NewMeshChannel(meshClient, identity, logger.With("component", "channel")),
		Submitter:    backendClient,
		Ledger:       node.NewLedger(cfg.Loop.LedgerSize),
		PollInterval: timings.PollInterval,
		ErrorBackoff: timings.ErrorBackoff,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting inference node",
		"version", version.Info(),
		"name", cfg.Node.Name,
		"mesh", cfg.Mesh.URL,
		"backend", cfg.Backend.URL,
		"poll_interval", timings.PollInterval,
	)

	// The control socket outlives the loop only until Start returns.
	controlCtx, stopControl := context.WithCancel(ctx)
	defer stopControl()
	controlDone := make(chan error, 1)
	if cfg.Control.SocketPath != "" {
		server := service.NewSocketServer(cfg.Control.SocketPath, logger.With("component", "control"))
		inferenceNode.Handle(server)
		go func() { controlDone <- server.Serve(controlCtx) }()
	} else {
		controlDone <- nil
	}

	startErr := inferenceNode.Start(ctx)
	stopControl()
	controlErr := <-controlDone

	if startErr != nil {
		return startErr
	}
	if controlErr != nil {
		return fmt.Errorf("control socket: %w", controlErr)
	}
	logger.Info("inference node stopped", "counters", inferenceNode.Status().Counters)
	return nil
}

func newMeshClient(cfg *config.Config, timings config.Timings, apiKey *secret.Buffer, logger *slog.Logger) (*mesh.Client, error) {
	return mesh.NewClient(mesh.ClientConfig{
		BaseURL:     cfg.Mesh.URL,
		APIKey:      apiKey,
		Timeout:     timings.RequestTimeout,
		PollTimeout: timings.PollTimeout,
		Logger:      logger.With("component", "mesh"),
	})
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `%s: mesh inference node

Usage:
  %[2]s [flags]                  run the node
  %[2]s status [flags]           show state and counters of a running node
  %[2]s recent [flags]           list recent dispatches of a running node
  %[2]s stop [flags]             ask a running node to stop
  %[2]s agents [flags]           list agents registered with the mesh
  %[2]s health [agent] [flags]   show mesh health, or one agent's status
  %[2]s send <agent> <message>   send a plain text message to an agent

Flags:
%[3]s`, binaryName, binaryName, flagSet.FlagUsages())
}
