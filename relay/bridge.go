package relay

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const acceptRetryDelay = 50 * time.Millisecond

var _ contract.Worker = (*Bridge)(nil)

// pairing is one inbound client and its dedicated upstream connection.
type pairing struct {
	mu       sync.Mutex
	inbound  net.Conn
	upstream net.Conn
	closed   bool
}

// attach returns false, closing upstream, when the pairing is already torn down.
func (p *pairing) attach(upstream net.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = upstream.Close()
		return false
	}
	p.upstream = upstream
	return true
}

func (p *pairing) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.inbound.Close()
	if p.upstream != nil {
		_ = p.upstream.Close()
	}
}

// Bridge accepts clients and forwards each of them to the broker.
// The identity line is rewritten with the reserved marker, everything after it
// is copied untouched in both directions.
type Bridge struct {
	log         *slog.Logger
	listener    net.Listener
	upstream    string
	dialTimeout time.Duration
	mu          sync.Mutex
	pairings    map[*pairing]struct{}
	wg          sync.WaitGroup
}

func NewBridge(log *slog.Logger, listener net.Listener, upstream string, dialTimeout time.Duration) *Bridge {
	return &Bridge{
		log:         log,
		listener:    listener,
		upstream:    upstream,
		dialTimeout: dialTimeout,
		pairings:    make(map[*pairing]struct{}),
	}
}

func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

// Active is the number of clients currently bridged or in handshake.
func (b *Bridge) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pairings)
}

// Run accepts clients until ctx is canceled, then closes every pairing.
func (b *Bridge) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = b.listener.Close()
	})
	defer stop()

	b.log.Info("Relay listening", "address", b.listener.Addr().String(), "upstream", b.upstream)
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				b.closeAll()
				return nil
			}
			b.log.Warn("Accept failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(acceptRetryDelay):
			}
			continue
		}
		p := &pairing{inbound: conn}
		b.track(p)
		go b.bridge(ctx, p)
	}
}

// Wait blocks until every pairing has been torn down.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) bridge(ctx context.Context, p *pairing) {
	defer b.untrack(p)
	defer p.close()

	remote := p.inbound.RemoteAddr().String()
	if err := b.pair(ctx, p); err != nil {
		b.log.Info("Bridge ended", "remote", remote, "error", err)
		return
	}
	b.log.Debug("Bridge ended", "remote", remote)
}

func (b *Bridge) pair(ctx context.Context, p *pairing) error {
	dialer := net.Dialer{Timeout: b.dialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", b.upstream)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", b.upstream, err)
	}
	if !p.attach(upstream) {
		return net.ErrClosed
	}

	fromClient := protocol.NewLineReader(p.inbound)
	fromBroker := protocol.NewLineReader(upstream)

	if err := handshake(fromClient, fromBroker, p.inbound, upstream); err != nil {
		return err
	}

	// Whichever side ends first closes both, which unblocks the other pump
	var g errgroup.Group
	g.Go(func() error {
		defer p.close()
		_, err := io.Copy(upstream, fromClient.Remaining())
		return err
	})
	g.Go(func() error {
		defer p.close()
		_, err := io.Copy(p.inbound, fromBroker.Remaining())
		return err
	})
	if err := g.Wait(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// handshake forwards the client identity with the marker and returns the
// broker's first answer as is.
func handshake(fromClient, fromBroker *protocol.LineReader, client, broker io.Writer) error {
	name, err := fromClient.ReadLine()
	if err != nil {
		return fmt.Errorf("read identity: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return errors.ErrEmptyHandshake
	}
	if err := protocol.WriteLine(broker, string(domain.ReservedMarker)+name); err != nil {
		return fmt.Errorf("forward identity: %w", err)
	}
	answer, err := fromBroker.ReadLine()
	if err != nil {
		return fmt.Errorf("read broker answer: %w", err)
	}
	return protocol.WriteLine(client, answer)
}

func (b *Bridge) track(p *pairing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wg.Add(1)
	b.pairings[p] = struct{}{}
}

func (b *Bridge) untrack(p *pairing) {
	b.mu.Lock()
	delete(b.pairings, p)
	b.mu.Unlock()
	b.wg.Done()
}

func (b *Bridge) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.pairings {
		p.close()
	}
}
