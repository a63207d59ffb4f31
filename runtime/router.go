package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/protocol"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"time"
)

// Censor rewrites chat text before it is delivered.
type Censor interface {
	Censor(text string) (string, []string)
}

type LineSource interface {
	ReadLine() (string, error)
}

// Router drives one connection from its handshake to its close.
//
//	AwaitingName --Register--> Active --/exit or read error--> Closed
//
// Every inbound line is classified once by the protocol package and then
// dispatched to the registry, which owns delivery.
type Router struct {
	log        *slog.Logger
	registry   contract.IRegistry
	audit      contract.AuditSink
	censor     Censor
	monitoring *observability.MonitoringManager
	now        func() time.Time
}

func NewRouter(log *slog.Logger, registry contract.IRegistry, audit contract.AuditSink) *Router {
	return &Router{log: log, registry: registry, audit: audit, now: time.Now}
}

func (r *Router) WithCensor(censor Censor) *Router {
	r.censor = censor
	return r
}

func (r *Router) WithMonitoring(monitoring *observability.MonitoringManager) *Router {
	r.monitoring = monitoring
	return r
}

func (r *Router) WithClock(now func() time.Time) *Router {
	r.now = now
	return r
}

// Serve blocks until the client exits or its connection fails.
// The caller owns the sink and closes it once Serve returns.
func (r *Router) Serve(ctx context.Context, lines LineSource, sink contract.PayloadSink, origin domain.Origin) error {
	line, err := lines.ReadLine()
	if err != nil {
		return closedErr(err)
	}

	identify := protocol.ParseIdentify(line)
	result, err := r.registry.Register(identify.Name, origin, sink)
	if err != nil {
		if stderrors.Is(err, errors.ErrReservedMarker) {
			_ = sink.Send(protocol.NameRejected())
		}
		r.log.Info("Registration refused", "requested", identify.Name, "origin", origin.String(), "error", err)
		return err
	}

	session := result.Session
	defer func() {
		if r.registry.Unregister(session) {
			r.log.Info("Client left", "name", session.Name)
		}
	}()
	r.log.Info("Client joined",
		"name", session.Name,
		"requested", identify.Name,
		"origin", origin.String(),
		"reassigned", result.Reassigned)

	for {
		line, err := lines.ReadLine()
		if err != nil {
			return closedErr(err)
		}

		switch cmd := protocol.ParseInbound(line).(type) {
		case protocol.Exit:
			return nil
		case protocol.PrivateMessage:
			r.private(ctx, session, cmd)
		case protocol.PublicMessage:
			if cmd.Text == "" {
				continue
			}
			r.public(ctx, session, cmd)
		case protocol.Malformed:
			r.log.Debug("Malformed private command dropped", "name", session.Name, "line", cmd.Raw)
		}
	}
}

func (r *Router) public(ctx context.Context, session *domain.Session, cmd protocol.PublicMessage) {
	now := r.now()
	if !r.registry.Allow(session, now) {
		r.rateLimited(session)
		return
	}
	text := r.moderate(cmd.Text)
	r.registry.Broadcast(protocol.Public(now, session.Name, text), session)
	r.record(ctx, domain.NewPublicEntry(session.Name, text, now))
	r.registry.CountMessage()
}

func (r *Router) private(ctx context.Context, session *domain.Session, cmd protocol.PrivateMessage) {
	now := r.now()
	if !r.registry.Allow(session, now) {
		r.rateLimited(session)
		return
	}
	text := r.moderate(cmd.Text)
	if !r.registry.PrivateDeliver(session, cmd.Target, text, now) {
		return
	}
	r.record(ctx, domain.NewPrivateEntry(session.Name, cmd.Target, text, now))
	r.registry.CountMessage()
}

func (r *Router) rateLimited(session *domain.Session) {
	r.monitoring.IncrRateLimited()
	r.registry.Send(session, protocol.RateLimited())
}

// moderate leaves logging of censored words to the censor.
func (r *Router) moderate(text string) string {
	if r.censor == nil {
		return text
	}
	censored, _ := r.censor.Censor(text)
	return censored
}

func (r *Router) record(ctx context.Context, e domain.AuditEntry) {
	if err := r.audit.Consume(ctx, e); err != nil {
		r.log.Warn("Audit entry lost", "sender", e.Sender, "type", string(e.Type), "error", err)
	}
}

// closedErr treats a peer closing its side as a normal end of session.
func closedErr(err error) error {
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	return err
}
