package runtime

import (
	"chat-relay/errors"
	"chat-relay/protocol"
	"sync"

	"github.com/samber/lo"
)

// recordingSink keeps every payload queued for one session.
type recordingSink struct {
	mu       sync.Mutex
	payloads []protocol.Payload
	broken   bool
	closed   bool
}

func (s *recordingSink) Send(p protocol.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errors.ErrSinkClosed
	}
	s.payloads = append(s.payloads, p)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) all() []protocol.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Payload(nil), s.payloads...)
}

func (s *recordingSink) ofKind(kind protocol.Kind) []protocol.Payload {
	return lo.Filter(s.all(), func(p protocol.Payload, _ int) bool {
		return p.Kind == kind
	})
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = nil
}
