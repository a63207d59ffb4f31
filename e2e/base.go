package e2e

import (
	"bytes"
	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/infrastructure/tcp/server"
	"chat-relay/protocol"
	"chat-relay/relay"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config     Config
	timeout    time.Duration
	brokerAddr string
	relayAddr  string
	registry   *runtime.Registry
	audit      *sink.CSVAudit
	auditPath  string
	cancel     context.CancelFunc
	done       chan struct{}
}

// SetupSuite loads the environment configuration and starts what is not given
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.timeout, err = time.ParseDuration(s.Config.Timeout)
	s.Require().NoError(err)

	s.brokerAddr, s.relayAddr = s.Config.BrokerAddr, s.Config.RelayAddr
	if s.brokerAddr != "" && s.relayAddr != "" {
		return
	}
	s.startInProcess()
}

// SetupTest waits for the sessions of the previous scenario to be gone
func (s *BaseChatSuite) SetupTest() {
	s.Online(0)
}

func (s *BaseChatSuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.Require().NoError(s.audit.Close())
}

// startInProcess runs a supervised broker, its audit pipeline and a relay dialing the broker's relay ingress
func (s *BaseChatSuite) startInProcess() {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.auditPath = s.T().TempDir() + "/chat_server_log.csv"
	audit, err := sink.NewCSVAudit(s.auditPath)
	s.Require().NoError(err)
	s.audit = audit
	dispatcher := sink.NewAuditDispatcher(log, 64, time.Second).Add(audit)

	brokerListener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	ingressListener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.registry = runtime.NewRegistry(log, runtime.NewFixedWindow(runtime.DefaultRateLimit, runtime.DefaultRateWindow))
	router := runtime.NewRouter(log, s.registry, dispatcher)
	broker := server.NewChatServer(log, brokerListener, router, 64, time.Second).
		WithRelayIngress(ingressListener, []string{"127.0.0.1", "::1"})

	relayListener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	bridge := relay.NewBridge(log, relayListener, ingressListener.Addr().String(), time.Second)

	if s.brokerAddr == "" {
		s.brokerAddr = brokerListener.Addr().String()
	}
	if s.relayAddr == "" {
		s.relayAddr = relayListener.Addr().String()
	}

	sup := workers.NewSupervisor(log, 50*time.Millisecond)
	sup.Add(broker, bridge, dispatcher)
	go func() {
		sup.Run(ctx)
		close(s.done)
	}()
}

// Step prints a colorized header for a scenario step
func (s *BaseChatSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Participant is a connected client with its rendered output captured
type Participant struct {
	s      *BaseChatSuite
	client *client.Client
	mu     sync.Mutex
	out    bytes.Buffer
}

func (p *Participant) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *Participant) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Split(strings.TrimSpace(p.out.String()), "\n")
}

// Join connects to the broker, or to the relay when viaRelay is set
func (s *BaseChatSuite) Join(name string, viaRelay bool) *Participant {
	addr := s.brokerAddr
	if viaRelay {
		addr = s.relayAddr
	}
	p := &Participant{s: s}
	c, err := client.Dial(context.Background(), slog.Default(), addr, s.timeout, p, false)
	s.Require().NoError(err)
	p.client = c
	go func() {
		_ = c.Receive(context.Background())
	}()
	s.Require().NoError(c.Identify(name))
	s.T().Cleanup(func() {
		_ = c.Close()
	})
	return p
}

func (p *Participant) Say(line string) {
	p.s.Require().NoError(p.client.Send(line))
}

func (p *Participant) Leave() {
	p.Say(protocol.ExitCommand)
}

func (p *Participant) Name() string {
	return p.client.Name()
}

// Sees waits until a rendered line equals want
func (p *Participant) Sees(want string) {
	p.s.Require().Eventually(func() bool {
		for _, line := range p.lines() {
			if line == want {
				return true
			}
		}
		return false
	}, p.s.timeout, 10*time.Millisecond, "never saw %q, got %v", want, p.lines())
}

// SeesSuffix waits for a timestamped line, ignoring its clock
func (p *Participant) SeesSuffix(want string) {
	p.s.Require().Eventually(func() bool {
		for _, line := range p.lines() {
			if strings.HasSuffix(line, "] "+want) {
				return true
			}
		}
		return false
	}, p.s.timeout, 10*time.Millisecond, "never saw %q, got %v", want, p.lines())
}

func (p *Participant) Count(want string) int {
	n := 0
	for _, line := range p.lines() {
		if line == want || strings.HasSuffix(line, "] "+want) {
			n++
		}
	}
	return n
}

// Online waits until the registry holds n sessions; in-process only
func (s *BaseChatSuite) Online(n int) {
	if s.registry == nil {
		return
	}
	s.Require().Eventually(func() bool { return s.registry.Len() == n }, s.timeout, 10*time.Millisecond)
}

// AuditRows reads the CSV audit written by the in-process broker, header excluded
func (s *BaseChatSuite) AuditRows() [][]string {
	if s.auditPath == "" {
		return nil
	}
	file, err := os.Open(s.auditPath)
	s.Require().NoError(err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	s.Require().NoError(err)
	s.Require().NotEmpty(rows)
	return rows[1:]
}

// AuditedBy keeps the rows sent by sender with the given type
func (s *BaseChatSuite) AuditedBy(sender string, kind domain.MessageType) [][]string {
	return lo.Filter(s.AuditRows(), func(row []string, _ int) bool {
		return row[1] == sender && row[4] == string(kind)
	})
}
