package observability

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/process"
)

// Stats is one snapshot of the process activity.
type Stats struct {
	Sessions    int
	Messages    uint64
	RateLimited uint64
	Bridged     int
	AuditQueue  int
	AuditCap    int
	Restarts    uint64
	RSSBytes    uint64
	CPUPercent  float64
}

// SessionSource is implemented by the broker registry.
type SessionSource interface {
	Len() int
	MessageCount() uint64
}

// BridgeSource is implemented by the relay bridge.
type BridgeSource interface {
	Active() int
}

// QueueSource is implemented by the audit dispatcher.
type QueueSource interface {
	Backlog() (int, int)
}

// RestartSource is implemented by the worker supervisor.
type RestartSource interface {
	Restarts() uint64
}

// MonitoringManager gathers the counters of the broker or the relay.
// Sources are optional: a relay has no sessions and a broker has no bridges.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latest      Stats
	rateLimited atomic.Uint64
	sessions    SessionSource
	bridges     BridgeSource
	auditQueue  QueueSource
	restarts    RestartSource
	proc        *process.Process
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	mm := &MonitoringManager{log: log}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	} else {
		mm.proc = p
	}
	return mm
}

func (mm *MonitoringManager) WithSessions(s SessionSource) *MonitoringManager {
	mm.sessions = s
	return mm
}

func (mm *MonitoringManager) WithBridges(b BridgeSource) *MonitoringManager {
	mm.bridges = b
	return mm
}

func (mm *MonitoringManager) WithAuditQueue(q QueueSource) *MonitoringManager {
	mm.auditQueue = q
	return mm
}

func (mm *MonitoringManager) WithRestarts(r RestartSource) *MonitoringManager {
	mm.restarts = r
	return mm
}

// IncrRateLimited is safe on a nil manager.
func (mm *MonitoringManager) IncrRateLimited() {
	if mm == nil {
		return
	}
	mm.rateLimited.Add(1)
}

// Refresh collects a new snapshot and keeps it as the latest one.
func (mm *MonitoringManager) Refresh() Stats {
	stats := Stats{RateLimited: mm.rateLimited.Load()}
	if mm.sessions != nil {
		stats.Sessions = mm.sessions.Len()
		stats.Messages = mm.sessions.MessageCount()
	}
	if mm.bridges != nil {
		stats.Bridged = mm.bridges.Active()
	}
	if mm.auditQueue != nil {
		stats.AuditQueue, stats.AuditCap = mm.auditQueue.Backlog()
	}
	if mm.restarts != nil {
		stats.Restarts = mm.restarts.Restarts()
	}
	if mm.proc != nil {
		if mem, err := mm.proc.MemoryInfo(); err == nil {
			stats.RSSBytes = mem.RSS
		} else {
			mm.log.Debug("Failed to read memory info", "error", err)
		}
		if cpu, err := mm.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		} else {
			mm.log.Debug("Failed to read cpu percent", "error", err)
		}
	}

	mm.mu.Lock()
	mm.latest = stats
	mm.mu.Unlock()
	return stats
}

func (mm *MonitoringManager) GetLatest() Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latest
}
