package server

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const acceptRetryDelay = 50 * time.Millisecond

var _ contract.Worker = (*ChatServer)(nil)

// ChatServer accepts broker connections and hands each one to the router.
// Clients of the main listener are always direct. Only connections accepted
// on the relay ingress listener from a trusted address are marked as relayed.
type ChatServer struct {
	log                  *slog.Logger
	listener             net.Listener
	ingress              net.Listener
	router               *runtime.Router
	trustedRelays        []net.IP
	connectionBufferSize int
	writeTimeout         time.Duration
	mu                   sync.Mutex
	conns                map[net.Conn]struct{}
	wg                   sync.WaitGroup
}

func NewChatServer(
	log *slog.Logger,
	listener net.Listener,
	router *runtime.Router,
	connectionBufferSize int,
	writeTimeout time.Duration,
) *ChatServer {
	return &ChatServer{
		log:                  log,
		listener:             listener,
		router:               router,
		connectionBufferSize: connectionBufferSize,
		writeTimeout:         writeTimeout,
		conns:                make(map[net.Conn]struct{}),
	}
}

// WithRelayIngress adds the listener relays dial. A connection accepted there
// is relayed when its remote IP is one of trustedRelays, direct otherwise.
func (s *ChatServer) WithRelayIngress(ingress net.Listener, trustedRelays []string) *ChatServer {
	s.ingress = ingress
	s.trustedRelays = lo.FilterMap(trustedRelays, func(addr string, _ int) (net.IP, bool) {
		ip := net.ParseIP(addr)
		return ip, ip != nil
	})
	return s
}

func (s *ChatServer) Addr() net.Addr {
	return s.listener.Addr()
}

// IngressAddr is nil when no relay ingress is configured.
func (s *ChatServer) IngressAddr() net.Addr {
	if s.ingress == nil {
		return nil
	}
	return s.ingress.Addr()
}

// Run accepts connections until ctx is canceled.
// Open connections are closed on shutdown, they are not drained.
func (s *ChatServer) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.listener.Close()
		if s.ingress != nil {
			_ = s.ingress.Close()
		}
	})
	defer stop()

	var g errgroup.Group
	s.log.Info("Broker listening", "address", s.listener.Addr().String())
	g.Go(func() error {
		s.accept(ctx, s.listener, false)
		return nil
	})
	if s.ingress != nil {
		s.log.Info("Relay ingress listening", "address", s.ingress.Addr().String())
		g.Go(func() error {
			s.accept(ctx, s.ingress, true)
			return nil
		})
	}
	_ = g.Wait()
	s.closeAll()
	return nil
}

func (s *ChatServer) accept(ctx context.Context, listener net.Listener, ingress bool) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("Accept failed", "address", listener.Addr().String(), "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptRetryDelay):
			}
			continue
		}
		origin := domain.Direct
		if ingress {
			origin = s.originOf(conn)
		}
		s.track(conn)
		go s.handle(ctx, conn, origin)
	}
}

// Wait blocks until every connection handler has returned.
func (s *ChatServer) Wait() {
	s.wg.Wait()
}

func (s *ChatServer) handle(ctx context.Context, conn net.Conn, origin domain.Origin) {
	defer s.untrack(conn)

	remote := conn.RemoteAddr().String()
	s.log.Debug("Connection accepted", "remote", remote, "origin", origin.String())

	out := sink.NewConnSink(s.log, conn, s.connectionBufferSize, s.writeTimeout)
	go out.Run()

	err := s.router.Serve(ctx, protocol.NewLineReader(conn), out, origin)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrReservedMarker):
	case stderrors.Is(err, errors.ErrLineTooLong):
		s.log.Warn("Line too long, closing connection", "remote", remote)
	default:
		s.log.Debug("Connection ended", "remote", remote, "error", err)
	}

	// The rejection notice, if any, is flushed before the socket closes
	out.Close()
	<-out.Done()
}

// originOf applies to ingress connections only.
func (s *ChatServer) originOf(conn net.Conn) domain.Origin {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return domain.Direct
	}
	if lo.ContainsBy(s.trustedRelays, func(ip net.IP) bool { return ip.Equal(addr.IP) }) {
		return domain.Relayed
	}
	return domain.Direct
}

func (s *ChatServer) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Add(1)
	s.conns[conn] = struct{}{}
}

func (s *ChatServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *ChatServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
