package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// DefaultStatsInterval is the pause between two stats reports.
const DefaultStatsInterval = 10 * time.Second

var _ contract.Worker = (*ReporterWorker)(nil)

// ReporterWorker logs a stats snapshot at a fixed interval, and once more when it stops.
type ReporterWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewReporterWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *ReporterWorker {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &ReporterWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report(startTime)
			w.log.Debug("Reporter stopped")
			return nil
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *ReporterWorker) report(startTime time.Time) {
	stats := w.monitoring.Refresh()
	w.log.Info("📊 Stats",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"clients", stats.Sessions,
		"messages", stats.Messages,
		"rate_limited", stats.RateLimited,
		"bridged", stats.Bridged,
		"audit_queue", stats.AuditQueue,
		"restarts", stats.Restarts,
		"ram_mb", stats.RSSBytes/1024/1024,
		"cpu_percent", stats.CPUPercent)
}
