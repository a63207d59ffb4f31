package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

var (
	_ contract.AuditSink = (*AuditDispatcher)(nil)
	_ contract.Worker    = (*AuditDispatcher)(nil)
)

// AuditDispatcher decouples connection workers from audit storage.
//
// Consume only queues the entry; Run hands every entry to all the
// registered sinks, each bounded by sinkTimeout. It is best effort: an
// entry that finds the queue full is reported to the caller and dropped.
type AuditDispatcher struct {
	log         *slog.Logger
	entries     chan domain.AuditEntry
	sinks       []contract.AuditSink
	sinkTimeout time.Duration
}

func NewAuditDispatcher(log *slog.Logger, bufferSize int, sinkTimeout time.Duration) *AuditDispatcher {
	return &AuditDispatcher{
		log:         log,
		entries:     make(chan domain.AuditEntry, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// Add registers downstream sinks. It must be called before Run.
func (d *AuditDispatcher) Add(sinks ...contract.AuditSink) *AuditDispatcher {
	d.sinks = append(d.sinks, sinks...)
	return d
}

func (d *AuditDispatcher) Consume(ctx context.Context, e domain.AuditEntry) error {
	select {
	case d.entries <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkFull
	}
}

func (d *AuditDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-d.entries:
			d.Fanout(ctx, e)
		case <-ctx.Done():
			d.drain()
			d.log.Debug("Context done, audit dispatcher stopped")
			return nil
		}
	}
}

// Backlog reports the queued entries and the queue capacity.
// Reading len and cap of a channel never blocks.
func (d *AuditDispatcher) Backlog() (int, int) {
	return len(d.entries), cap(d.entries)
}

// Fanout One sink for each entry
func (d *AuditDispatcher) Fanout(ctx context.Context, e domain.AuditEntry) {
	for _, s := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := s.Consume(sinkCtx, e); err != nil {
			d.log.Warn("Audit sink failed",
				"sink", fmt.Sprintf("%T", s),
				"sender", e.Sender,
				"error", err)
		}
		cancel()
	}
}

// drain writes what is already queued with a fresh context, so that the last
// messages before shutdown still reach the audit log.
func (d *AuditDispatcher) drain() {
	for {
		select {
		case e := <-d.entries:
			d.Fanout(context.Background(), e)
		default:
			return
		}
	}
}
