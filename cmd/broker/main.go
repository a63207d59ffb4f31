package main

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/tcp/server"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Broker terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the broker and blocks until SIGINT or SIGTERM.
// Deferred cleanups (audit file, Badger) run before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadBrokerConfig(os.Args[1:])
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Audit sinks: CSV always, Badger when a path is given
	csvAudit, err := sink.NewCSVAudit(config.AuditFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = csvAudit.Close()
	}()
	dispatcher := sink.NewAuditDispatcher(log, config.AuditBufferSize, config.SinkTimeout).Add(csvAudit)

	var repository storage.IAuditRepository
	if config.BadgerFilepath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.ERROR))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		auditRepository := storage.NewAuditRepository(db, log)
		// Like the CSV file, the audit store starts empty on every run
		if err := auditRepository.Reset(); err != nil {
			return exitRuntime, fmt.Errorf("audit store reset failed: %w", err)
		}
		dispatcher.Add(sink.NewDiskSink(auditRepository, log))
		repository = auditRepository
	}

	// 3. Registry & Router
	registry := runtime.NewRegistry(log, runtime.NewFixedWindow(config.RateLimit, config.RateWindow))
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	monitoring := observability.NewMonitoringManager(log).
		WithSessions(registry).
		WithAuditQueue(dispatcher).
		WithRestarts(supervisor)
	router := runtime.NewRouter(log, registry, dispatcher).WithMonitoring(monitoring)

	if config.ModerationEnabled {
		moderator, err := buildModerator(log, config.CharReplacement)
		if err != nil {
			return exitConfig, err
		}
		router.WithCensor(moderator)
	}

	// 4. Listener
	address := config.Address()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	chatServer := server.NewChatServer(log, listener, router, config.ConnectionBufferSize, config.WriteTimeout)
	if ingressAddress := config.IngressAddress(); ingressAddress != "" {
		ingress, err := net.Listen("tcp", ingressAddress)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", ingressAddress, err)
		}
		chatServer.WithRelayIngress(ingress, config.TrustedRelayList())
	}

	reporter := workers.NewReporterWorker(log, monitoring, config.StatsInterval)
	supervised := []contract.Worker{chatServer, dispatcher, reporter}
	if config.DebugPort > 0 {
		debugAddress := fmt.Sprintf("%s:%d", config.Host, config.DebugPort)
		debugListener, err := net.Listen("tcp", debugAddress)
		if err != nil {
			return exitRuntime, fmt.Errorf("failed to listen on %s: %w", debugAddress, err)
		}
		supervised = append(supervised, internal.NewDebugServer(log, debugListener, monitoring, repository))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervision, blocks until the context is canceled
	var sup contract.ISupervisor = supervisor
	sup.Add(supervised...)
	log.Info("Broker started", "address", address, "relay_ingress", config.IngressAddress(), "audit", config.AuditFilepath)
	sup.Run(ctx)

	log.Info("Broker stopped cleanly", "messages", registry.MessageCount())
	return exitOK, nil
}

func buildModerator(log *slog.Logger, replacement string) (*moderation.Filter, error) {
	mask, err := internal.CharacterRune(replacement)
	if err != nil {
		return nil, err
	}
	lists, err := moderation.LoadEmbeddedWordLists()
	if err != nil {
		return nil, fmt.Errorf("word lists loading failed: %w", err)
	}
	words := lists.Words()
	log.Info("Moderation enabled", "words", len(words), "languages", lists.Languages())
	return moderation.NewFilter(log, words, mask)
}
