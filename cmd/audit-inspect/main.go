package main

import (
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"chat-relay/sink"
	"fmt"
	"log/slog"
	"os"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

type config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "audit-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	dbPath := pflag.String("db", cfg.BadgerFilepath, "Path to the broker audit Badger DB")
	limit := pflag.Int("limit", 0, "Maximum number of entries, 0 for all")
	pflag.Parse()
	if *dbPath == "" {
		return fmt.Errorf("no database path, set BADGER_FILEPATH or --db")
	}

	// BypassLockGuard allows reading while the broker holds the lock
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var n *int
	if *limit > 0 {
		n = limit
	}
	entries, err := storage.NewAuditRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn)).List(n)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Timestamp", "Sender", "Recipient", "Message", "Type"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk(lo.Map(entries, func(e domain.AuditEntry, _ int) []string {
		return []string{e.At.Format(sink.AuditTimeLayout), e.Sender, e.Recipient, e.Text, string(e.Type)}
	}))
	table.Render()

	fmt.Printf("%d entries\n", len(entries))
	return nil
}
