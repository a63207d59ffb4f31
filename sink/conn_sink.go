package sink

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/protocol"
	"log/slog"
	"net"
	"sync"
	"time"
)

var _ contract.PayloadSink = (*ConnSink)(nil)

// ConnSink is the outbound queue of one connection.
// The registry fans payloads into it under its lock; Run drains it to the
// socket so that no delivery ever waits on the network.
type ConnSink struct {
	log          *slog.Logger
	conn         net.Conn
	writeTimeout time.Duration
	mu           sync.RWMutex
	closed       bool
	queue        chan protocol.Payload
	done         chan struct{}
}

func NewConnSink(log *slog.Logger, conn net.Conn, bufferSize int, writeTimeout time.Duration) *ConnSink {
	return &ConnSink{
		log:          log,
		conn:         conn,
		writeTimeout: writeTimeout,
		queue:        make(chan protocol.Payload, bufferSize),
		done:         make(chan struct{}),
	}
}

// Send queues p without blocking.
func (s *ConnSink) Send(p protocol.Payload) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrSinkClosed
	}
	select {
	case s.queue <- p:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

// Close stops accepting payloads. Run flushes what is queued, then closes the connection.
func (s *ConnSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Run writes queued payloads until the sink is closed or a write fails.
// The connection is closed on return, which also ends the reader of that connection.
func (s *ConnSink) Run() {
	defer close(s.done)
	defer func() {
		_ = s.conn.Close()
	}()

	for p := range s.queue {
		if s.writeTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if err := protocol.WriteLine(s.conn, protocol.Encode(p)); err != nil {
			s.log.Debug("Write failed, closing connection",
				"remote", s.conn.RemoteAddr().String(),
				"error", err)
			return
		}
	}
}

// Done is closed once Run has returned and the connection is closed.
func (s *ConnSink) Done() <-chan struct{} {
	return s.done
}
