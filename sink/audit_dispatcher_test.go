package sink

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditDispatcher_FansOutToEverySink(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	first := mocks.NewMockAuditSink(ctrl)
	second := mocks.NewMockAuditSink(ctrl)

	entry := domain.NewPublicEntry("alice", "hello", time.Now())
	done := make(chan struct{})

	first.EXPECT().Consume(gomock.Any(), entry).Return(errors.ErrSinkClosed).Times(1)
	second.EXPECT().Consume(gomock.Any(), entry).
		Do(func(_ context.Context, _ domain.AuditEntry) { close(done) }).
		Return(nil).Times(1)

	dispatcher := NewAuditDispatcher(log, 4, time.Second).Add(first, second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = dispatcher.Run(ctx) }()

	// When an entry is queued
	req.NoError(dispatcher.Consume(ctx, entry))

	// Then the second sink still gets it although the first one failed
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("entry never reached the second sink")
	}
}

func TestAuditDispatcher_SinkTimeout(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	slow := mocks.NewMockAuditSink(ctrl)

	slow.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.AuditEntry) error {
			<-ctx.Done()     // Waiting for timeout to trigger cancellation
			return ctx.Err() // Sending back "context deadline exceeded"
		}).Times(1)

	dispatcher := NewAuditDispatcher(log, 4, 20*time.Millisecond).Add(slow)

	// When the sink hangs, Fanout returns after the timeout
	dispatcher.Fanout(context.Background(), domain.NewPublicEntry("alice", "hi", time.Now()))
}

func TestAuditDispatcher_FullQueue(t *testing.T) {
	req := require.New(t)
	dispatcher := NewAuditDispatcher(slog.Default(), 1, time.Second)

	req.NoError(dispatcher.Consume(context.Background(), domain.NewPublicEntry("a", "1", time.Now())))
	req.ErrorIs(dispatcher.Consume(context.Background(), domain.NewPublicEntry("a", "2", time.Now())), errors.ErrSinkFull)

	queued, capacity := dispatcher.Backlog()
	req.Equal(1, queued)
	req.Equal(1, capacity)
}

func TestAuditDispatcher_DrainsOnStop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockAuditSink(ctrl)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	dispatcher := NewAuditDispatcher(slog.Default(), 4, time.Second).Add(sink)
	req.NoError(dispatcher.Consume(context.Background(), domain.NewPublicEntry("a", "1", time.Now())))
	req.NoError(dispatcher.Consume(context.Background(), domain.NewPublicEntry("a", "2", time.Now())))

	// Given the context is already canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Then Run still writes what was queued before returning
	req.NoError(dispatcher.Run(ctx))
}
