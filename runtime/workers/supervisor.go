package workers

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRestartInterval is the pause before a crashed worker is started again.
const DefaultRestartInterval = 200 * time.Millisecond

var _ contract.ISupervisor = (*Supervisor)(nil)

// Supervisor keeps the long running parts of the broker or the relay alive:
// accept loops, the audit dispatcher, the stats reporter and the debug server.
// A worker that panics or fails is started again after restartInterval, so a
// bad connection never takes the whole process down. A worker returning nil
// is done for good.
type Supervisor struct {
	Cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
	restarts        atomic.Uint64
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run blocks until every worker is done, which happens at the latest when
// ctx is canceled or Stop is called.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	s.log.Debug("Starting workers", "count", len(s.workers))
	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Restarts counts crashed runs since the start, all workers together.
func (s *Supervisor) Restarts() uint64 {
	return s.restarts.Load()
}

func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for ctx.Err() == nil {
			err := s.runOnce(ctx, worker, name)
			switch {
			case err == nil:
				s.log.Info("Worker done", "worker", name)
				return
			case ctx.Err() != nil:
				// canceled while running, the loop condition ends it
			default:
				s.restarts.Add(1)
				s.log.Warn("Worker failed, restarting", "worker", name, "error", err, "in", s.restartInterval)
				select {
				case <-ctx.Done():
				case <-time.After(s.restartInterval):
				}
			}
		}
		s.log.Info("Worker stopped", "worker", name)
	}()
}

// runOnce maps a panic to ErrWorkerPanic.
func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Worker panicked", "worker", name, "panic", r)
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels every worker; Run returns once they are all done.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
