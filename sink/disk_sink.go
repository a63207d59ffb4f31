package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"context"
	"log/slog"
)

var _ contract.AuditSink = DiskSink{}

// DiskSink stores audit entries in BadgerDB through the audit repository.
type DiskSink struct {
	repository storage.IAuditRepository
	log        *slog.Logger
}

func NewDiskSink(repository storage.IAuditRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(ctx context.Context, e domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.repository.Store(e)
}
