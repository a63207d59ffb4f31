package main

import (
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/relay"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadRelayConfig(os.Args[1:])
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Listener
	address := config.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	bridge := relay.NewBridge(log, listener, config.UpstreamAddress(), config.DialTimeout)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	monitoring := observability.NewMonitoringManager(log).WithBridges(bridge).WithRestarts(sup)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Supervision
	sup.Add(bridge, workers.NewReporterWorker(log, monitoring, config.StatsInterval))
	log.Info("Relay started", "address", address, "upstream", config.UpstreamAddress())
	sup.Run(ctx)

	log.Info("Relay stopped cleanly")
	return exitOK, nil
}
