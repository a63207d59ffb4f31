//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/protocol"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// PayloadSink is the delivery side of one connection.
// Send must never block on network I/O: it only queues the payload.
type PayloadSink interface {
	Send(p protocol.Payload) error
	Close()
}

// AuditSink receives every delivered chat message.
type AuditSink interface {
	Consume(ctx context.Context, e domain.AuditEntry) error
}

// RegistrationResult tells the router which name was finally assigned.
type RegistrationResult struct {
	Session    *domain.Session
	Assigned   string
	Reassigned bool
}

type IRegistry interface {
	Register(requested string, origin domain.Origin, sink PayloadSink) (RegistrationResult, error)
	Unregister(session *domain.Session) bool
	Snapshot() []string
	Len() int
	Allow(session *domain.Session, now time.Time) bool
	Send(session *domain.Session, p protocol.Payload)
	Broadcast(p protocol.Payload, exclude *domain.Session)
	PrivateDeliver(sender *domain.Session, target, text string, at time.Time) bool
	CountMessage()
	MessageCount() uint64
}
