package client

import (
	"bytes"
	"chat-relay/protocol"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_ReceiveTracksNameAndUsers(t *testing.T) {
	req := require.New(t)
	local, broker := net.Pipe()
	var out bytes.Buffer
	c := New(slog.Default(), local, &out, false)

	at := time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)
	go func() {
		for _, p := range []protocol.Payload{
			protocol.NameReassigned("alice", "User042"),
			protocol.UserList([]string{"alice", "User042"}),
			protocol.Public(at, "alice", "hi"),
			protocol.RateLimited(),
		} {
			_ = protocol.WriteLine(broker, protocol.Encode(p))
		}
		_ = protocol.WriteLine(broker, "some future line")
		_ = broker.Close()
	}()

	req.NoError(c.Receive(context.Background()))

	req.Equal("User042", c.Name())
	req.Equal([]string{"alice", "User042"}, c.Users())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	req.Equal([]string{
		"Nickname 'alice' is taken. You've been assigned 'User042'",
		"Online (2): alice, User042",
		"[09:05:00] alice: hi",
		"You're sending messages too quickly. Please slow down.",
		"some future line",
	}, lines)
}

func TestClient_SendAndIdentify(t *testing.T) {
	req := require.New(t)
	local, broker := net.Pipe()
	defer broker.Close()
	c := New(slog.Default(), local, &bytes.Buffer{}, false)
	defer c.Close()

	received := make(chan string, 2)
	go func() {
		lines := protocol.NewLineReader(broker)
		for i := 0; i < 2; i++ {
			line, err := lines.ReadLine()
			if err != nil {
				return
			}
			received <- line
		}
	}()

	req.NoError(c.Identify("carol"))
	req.NoError(c.Send(protocol.PrivateCommand("bob", "hello")))
	req.Equal("carol", <-received)
	req.Equal("/private bob hello", <-received)
}

func TestClient_RenderAlone(t *testing.T) {
	req := require.New(t)
	c := New(slog.Default(), nil, &bytes.Buffer{}, false)
	users := protocol.UserList([]string{"carol"})

	// Given the welcome has not arrived yet, carol is just another user
	req.Equal("Online (1): carol", c.Render(users))

	// When the broker welcomes carol
	welcome := protocol.Welcome("carol")
	req.Equal("Welcome, carol!", c.Render(welcome))
	c.apply(welcome)

	// Then she knows she is alone
	req.Equal("Online (1): carol (nobody else)", c.Render(users))
	req.Equal("Online (2): carol, dave", c.Render(protocol.UserList([]string{"carol", "dave"})))

	// Then colours only wrap the text
	coloured := New(slog.Default(), nil, &bytes.Buffer{}, true)
	req.Contains(coloured.Render(protocol.Welcome("carol")), "Welcome, carol!")
}

func TestClient_ReceiveStopsOnCancel(t *testing.T) {
	req := require.New(t)
	local, broker := net.Pipe()
	defer broker.Close()
	c := New(slog.Default(), local, &bytes.Buffer{}, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Receive(ctx) }()

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("Receive should stop on cancel")
	}
}
