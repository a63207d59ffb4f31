package client

import (
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

	"github.com/gookit/color"
	"github.com/samber/lo"
)

// Client is a terminal chat session against a broker or a relay.
// Received payloads are decoded once, then rendered to out.
type Client struct {
	log     *slog.Logger
	conn    net.Conn
	lines   *protocol.LineReader
	out     io.Writer
	colours bool
	mu      sync.Mutex
	name    string
	users   []string
}

func New(log *slog.Logger, conn net.Conn, out io.Writer, colours bool) *Client {
	return &Client{
		log:     log,
		conn:    conn,
		lines:   protocol.NewLineReader(conn),
		out:     out,
		colours: colours,
	}
}

// Dial opens the TCP connection; the name still has to be sent with Identify.
func Dial(ctx context.Context, log *slog.Logger, address string, timeout time.Duration, out io.Writer, colours bool) (*Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", address, err)
	}
	return New(log, conn, out, colours), nil
}

func (c *Client) Identify(name string) error {
	return c.Send(name)
}

func (c *Client) Send(line string) error {
	return protocol.WriteLine(c.conn, line)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Name is the name the broker finally assigned, empty before the confirmation.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) Users() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.users...)
}

// Receive renders every payload until the connection ends or ctx is canceled.
// A connection closed by the broker is not an error.
func (c *Client) Receive(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.Close()
	})
	defer stop()

	for {
		line, err := c.lines.ReadLine()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		p := protocol.Decode(line)
		c.apply(p)
		if _, err := fmt.Fprintln(c.out, c.Render(p)); err != nil {
			return err
		}
	}
}

func (c *Client) apply(p protocol.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch p.Kind {
	case protocol.KindWelcome, protocol.KindNameReassigned:
		c.name = p.Name
	case protocol.KindUserList:
		c.users = p.Names
	default:
	}
}

// Render turns a payload into one terminal line.
func (c *Client) Render(p protocol.Payload) string {
	text := protocol.Encode(p)
	switch p.Kind {
	case protocol.KindUnknown:
		return p.Raw
	case protocol.KindUserList:
		// Until the welcome names us, every listed user counts as someone else
		others := lo.Without(p.Names, c.Name())
		text = fmt.Sprintf("Online (%d): %s", len(p.Names), strings.Join(p.Names, ", "))
		if len(others) == 0 {
			text += " (nobody else)"
		}
		return c.paint(text, color.FgYellow)
	case protocol.KindWelcome, protocol.KindNameReassigned, protocol.KindJoined, protocol.KindLeft:
		return c.paint(text, color.FgGreen)
	case protocol.KindPrivateIncoming, protocol.KindPrivateConfirm:
		return c.paint(text, color.FgMagenta)
	case protocol.KindNameRejected, protocol.KindUserNotFound, protocol.KindRateLimited:
		return c.paint(text, color.FgRed)
	default:
		return text
	}
}

func (c *Client) paint(text string, fg color.Color) string {
	if !c.colours {
		return text
	}
	return color.New(fg).Render(text)
}
