// Package domain contains core concepts of the chat system.
// This file defines audit entries written for every delivered chat message.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecipientAll is the recipient recorded for public messages.
const RecipientAll = "ALL"

type MessageType string

const (
	PublicMessage  MessageType = "public"
	PrivateMessage MessageType = "private"
)

// AuditEntry is one row of the append-only audit log.
// Entries are immutable once recorded.
type AuditEntry struct {
	ID        uuid.UUID
	At        time.Time
	Sender    string
	Recipient string
	Text      string
	Type      MessageType
}

func NewPublicEntry(sender, text string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.New(),
		At:        at,
		Sender:    sender,
		Recipient: RecipientAll,
		Text:      text,
		Type:      PublicMessage,
	}
}

func NewPrivateEntry(sender, recipient, text string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.New(),
		At:        at,
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		Type:      PrivateMessage,
	}
}
