// Package domain contains core concepts of the chat system.
// This file defines Session entities and their rate window.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservedMarker tags identities forwarded by a relay.
// Directly connected clients may never submit a name containing it.
const ReservedMarker = '*'

// Origin tells how a connection reached the broker.
type Origin int

const (
	Direct Origin = iota
	Relayed
)

func (o Origin) String() string {
	switch o {
	case Relayed:
		return "relayed"
	default:
		return "direct"
	}
}

// RateWindow is the fixed window counter of one session.
// It is read and reset only by the rate limiter under the registry lock.
type RateWindow struct {
	Count int
	Start time.Time
}

// Session is the server-side state of one connected, named client.
type Session struct {
	ID       uuid.UUID
	Name     string
	Origin   Origin
	JoinedAt time.Time
	Window   RateWindow
}

func NewSession(name string, origin Origin, now time.Time) *Session {
	return &Session{
		ID:       uuid.New(),
		Name:     name,
		Origin:   origin,
		JoinedAt: now,
		Window:   RateWindow{Count: 0, Start: now},
	}
}
