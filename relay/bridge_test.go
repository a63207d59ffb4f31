package relay

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/infrastructure/tcp/server"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type discardAudit struct{}

func (discardAudit) Consume(context.Context, domain.AuditEntry) error { return nil }

type stack struct {
	broker   *server.ChatServer
	registry *runtime.Registry
	bridge   *Bridge
}

// startStack runs a broker whose relay ingress trusts loopback and a relay dialing that ingress.
func startStack(t *testing.T) stack {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx, cancel := context.WithCancel(context.Background())

	brokerListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ingressListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	registry := runtime.NewRegistry(log, runtime.NewFixedWindow(runtime.DefaultRateLimit, runtime.DefaultRateWindow))
	broker := server.NewChatServer(log, brokerListener, runtime.NewRouter(log, registry, discardAudit{}), 64, time.Second).
		WithRelayIngress(ingressListener, []string{"127.0.0.1", "::1"})

	relayListener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	bridge := NewBridge(log, relayListener, ingressListener.Addr().String(), time.Second)

	brokerDone := make(chan error, 1)
	bridgeDone := make(chan error, 1)
	go func() { brokerDone <- broker.Run(ctx) }()
	go func() { bridgeDone <- bridge.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-bridgeDone)
		require.NoError(t, <-brokerDone)
		bridge.Wait()
		broker.Wait()
	})
	return stack{broker: broker, registry: registry, bridge: bridge}
}

type peer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func connect(t *testing.T, addr net.Addr) *peer {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (p *peer) write(raw string) {
	p.t.Helper()
	_, err := p.conn.Write([]byte(raw))
	require.NoError(p.t, err)
}

func (p *peer) readLine() string {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := p.reader.ReadString('\n')
	require.NoError(p.t, err)
	return strings.TrimRight(line, "\n")
}

func (p *peer) expect(kind protocol.Kind) protocol.Payload {
	p.t.Helper()
	for {
		if d := protocol.Decode(p.readLine()); d.Kind == kind {
			return d
		}
	}
}

func (p *peer) expectClosed() {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, err := p.reader.ReadString('\n'); err != nil {
			require.NotErrorIs(p.t, err, os.ErrDeadlineExceeded)
			return
		}
	}
}

func TestBridge_RelayedClientTalksWithDirectClient(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	alice := connect(t, s.broker.Addr())
	alice.write("alice\n")
	alice.expect(protocol.KindWelcome)

	// When carol connects through the relay
	carol := connect(t, s.bridge.Addr())
	carol.write("carol\n")

	// Then the broker answer comes back unchanged, with the marker
	req.Equal("Welcome, *carol!", carol.readLine())
	req.Equal(1, s.bridge.Active())

	joined := alice.expect(protocol.KindJoined)
	for joined.Name != "*carol" {
		joined = alice.expect(protocol.KindJoined)
	}

	// Then both directions are pumped after the handshake
	carol.write("hi alice\n")
	public := alice.expect(protocol.KindPublic)
	req.Equal("*carol", public.Name)
	req.Equal("hi alice", public.Text)

	alice.write("/private *carol welcome aboard\n")
	incoming := carol.expect(protocol.KindPrivateIncoming)
	req.Equal("alice", incoming.Name)
	req.Equal("welcome aboard", incoming.Text)
}

func TestBridge_KeepsBytesSentWithIdentity(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	alice := connect(t, s.broker.Addr())
	alice.write("alice\n")
	alice.expect(protocol.KindWelcome)

	// Given the identity and a first message in a single write
	carol := connect(t, s.bridge.Addr())
	carol.write("carol\nfirst words\n")

	req.Equal("Welcome, *carol!", carol.readLine())
	req.Equal("first words", alice.expect(protocol.KindPublic).Text)
}

func TestBridge_ClientLeavingClosesUpstream(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	carol := connect(t, s.bridge.Addr())
	carol.write("carol\n")
	req.Equal("Welcome, *carol!", carol.readLine())
	req.Eventually(func() bool { return s.registry.Len() == 1 }, time.Second, 10*time.Millisecond)

	// When the client goes away
	req.NoError(carol.conn.Close())

	// Then the broker session and the pairing are gone
	req.Eventually(func() bool { return s.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return s.bridge.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_ExitThroughRelay(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	carol := connect(t, s.bridge.Addr())
	carol.write("carol\n")
	req.Equal("Welcome, *carol!", carol.readLine())

	carol.write(protocol.ExitCommand + "\n")

	// Then the broker closes its side and the relay closes the client
	carol.expectClosed()
	req.Eventually(func() bool { return s.bridge.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBridge_MarkedNameIsRejectedByBroker(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	// Given a client that already carries the marker, the relay adds a second one
	mallory := connect(t, s.bridge.Addr())
	mallory.write("*mallory\n")

	req.Equal(protocol.KindNameRejected, protocol.Decode(mallory.readLine()).Kind)
	mallory.expectClosed()
	req.Zero(s.registry.Len())
}

func TestBridge_UpstreamUnreachable(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given an upstream address nobody listens on
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	upstream := dead.Addr().String()
	req.NoError(dead.Close())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	bridge := NewBridge(log, listener, upstream, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	defer func() {
		cancel()
		req.NoError(<-done)
	}()

	client := connect(t, bridge.Addr())
	client.write("carol\n")

	// Then the inbound connection is closed without answer
	client.expectClosed()
}
