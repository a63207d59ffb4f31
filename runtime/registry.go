package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/protocol"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	generatedNamePrefix = "User"
	maxNameAttempts     = 32
)

var _ contract.IRegistry = (*Registry)(nil)

type entry struct {
	session *domain.Session
	sink    contract.PayloadSink
}

// Registry owns every active session.
// A single mutex guards the name index, the rate windows and the message counter.
// Nothing performs network I/O while holding it: delivery only queues payloads
// on the sinks of the sessions.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	limiter  FixedWindow
	byName   map[string]*entry
	byID     map[uuid.UUID]*entry
	messages uint64
	now      func() time.Time
	intn     func(n int) int
}

func NewRegistry(log *slog.Logger, limiter FixedWindow) *Registry {
	return &Registry{
		log:     log,
		limiter: limiter,
		byName:  make(map[string]*entry),
		byID:    make(map[uuid.UUID]*entry),
		now:     time.Now,
		intn:    rand.IntN,
	}
}

// WithClock replaces the clock used for join and leave notices.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// WithRand replaces the source of the digits of generated names.
func (r *Registry) WithRand(intn func(n int) int) *Registry {
	r.intn = intn
	return r
}

// ValidateName applies the reserved marker rule.
// Only connections coming from a trusted relay may carry a single leading marker.
func ValidateName(name string, origin domain.Origin) error {
	marker := string(domain.ReservedMarker)
	if origin == domain.Relayed {
		if rest, ok := strings.CutPrefix(name, marker); ok {
			if rest == "" {
				return errors.ErrReservedMarker
			}
			name = rest
		}
	}
	if strings.Contains(name, marker) {
		return errors.ErrReservedMarker
	}
	return nil
}

// Register creates the session of a freshly identified connection.
// A taken or empty name is replaced by a generated one. The new session gets
// its confirmation first, then everybody gets the join notice and the user list.
func (r *Registry) Register(requested string, origin domain.Origin, sink contract.PayloadSink) (contract.RegistrationResult, error) {
	if err := ValidateName(requested, origin); err != nil {
		return contract.RegistrationResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	assigned := requested
	if _, taken := r.byName[requested]; taken || requested == "" {
		name, err := r.generateNameLocked()
		if err != nil {
			return contract.RegistrationResult{}, err
		}
		assigned = name
	}
	reassigned := requested != "" && assigned != requested

	now := r.now()
	e := &entry{session: domain.NewSession(assigned, origin, now), sink: sink}
	r.byName[assigned] = e
	r.byID[e.session.ID] = e

	if reassigned {
		r.sendLocked(e, protocol.NameReassigned(requested, assigned))
	} else {
		r.sendLocked(e, protocol.Welcome(assigned))
	}
	r.broadcastLocked(protocol.Joined(now, assigned), nil)
	r.syncUsersLocked()

	return contract.RegistrationResult{
		Session:    e.session,
		Assigned:   assigned,
		Reassigned: reassigned,
	}, nil
}

// generateNameLocked picks "User" followed by three digits, re-checked against the registry.
func (r *Registry) generateNameLocked() (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := fmt.Sprintf("%s%03d", generatedNamePrefix, r.intn(1000))
		if _, taken := r.byName[name]; !taken {
			return name, nil
		}
	}
	return "", errors.ErrNameExhausted
}

// Unregister removes the session and notifies the others.
// It is idempotent and reports whether this call removed anything.
func (r *Registry) Unregister(session *domain.Session) bool {
	if session == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[session.ID]; !ok {
		return false
	}
	delete(r.byID, session.ID)
	delete(r.byName, session.Name)

	r.broadcastLocked(protocol.Left(r.now(), session.Name), nil)
	r.syncUsersLocked()
	return true
}

// Lookup returns the live session registered under name.
func (r *Registry) Lookup(name string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Snapshot lists the registered names in no particular order.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.byName)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

// Allow runs the rate limiter on the session window under the registry lock.
func (r *Registry) Allow(session *domain.Session, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limiter.Allow(&session.Window, now)
}

// Send queues a payload for a single session, skipped if it already left.
func (r *Registry) Send(session *domain.Session, p protocol.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[session.ID]; ok {
		r.sendLocked(e, p)
	}
}

// Broadcast queues a payload for every session except exclude (nil excludes nobody).
func (r *Registry) Broadcast(p protocol.Payload, exclude *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(p, exclude)
}

// PrivateDeliver sends text to target and a confirmation back to sender.
// An unknown target only yields an error payload to the sender.
// A sender that left concurrently simply gets no confirmation.
func (r *Registry) PrivateDeliver(sender *domain.Session, target, text string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, senderAlive := r.byID[sender.ID]
	to, ok := r.byName[target]
	if !ok {
		if senderAlive {
			r.sendLocked(from, protocol.UserNotFound(target))
		}
		return false
	}
	r.sendLocked(to, protocol.PrivateIncoming(at, sender.Name, text))
	if senderAlive {
		r.sendLocked(from, protocol.PrivateConfirm(at, target, text))
	}
	return true
}

// CountMessage increments the process wide counter of delivered messages.
func (r *Registry) CountMessage() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
}

func (r *Registry) MessageCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages
}

func (r *Registry) broadcastLocked(p protocol.Payload, exclude *domain.Session) {
	for _, e := range r.byID {
		if exclude != nil && e.session.ID == exclude.ID {
			continue
		}
		r.sendLocked(e, p)
	}
}

func (r *Registry) syncUsersLocked() {
	r.broadcastLocked(protocol.UserList(lo.Keys(r.byName)), nil)
}

// sendLocked never fails the caller: a broken connection is detected and
// unregistered by its own receive loop.
func (r *Registry) sendLocked(e *entry, p protocol.Payload) {
	if err := e.sink.Send(p); err != nil {
		r.log.Debug("Delivery skipped",
			"name", e.session.Name,
			"kind", p.Kind.String(),
			"error", err)
	}
}
