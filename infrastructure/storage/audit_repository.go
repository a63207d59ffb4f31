//go:generate go run go.uber.org/mock/mockgen -source=audit_repository.go -destination=../../mocks/mock_audit_repository.go -package=mocks
package storage

import (
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const auditPrefix = "audit:"

type IAuditRepository interface {
	Store(e domain.AuditEntry) error
	List(limit *int) ([]domain.AuditEntry, error)
	Reset() error
}

type AuditRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAuditRepository(db *badger.DB, log *slog.Logger) AuditRepository {
	return AuditRepository{db: db, log: log}
}

// DiskAuditEntry is the CBOR value stored under each audit key.
type DiskAuditEntry struct {
	ID        string `cbor:"id"`
	At        int64  `cbor:"at"`
	Sender    string `cbor:"sender"`
	Recipient string `cbor:"recipient"`
	Text      string `cbor:"text"`
	Type      string `cbor:"type"`
}

// Store persists an entry in BadgerDB.
// The key is formatted as "audit:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two entries written in the same nanosecond apart.
func (r AuditRepository) Store(e domain.AuditEntry) error {
	key := auditKey(e)
	bytes, err := cbor.Marshal(fromAuditEntry(e))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// List returns the entries in chronological order, at most limit of them when set.
func (r AuditRepository) List(limit *int) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(auditPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(entries) == *limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d audit entries reached", *limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var disk DiskAuditEntry
				if err := cbor.Unmarshal(value, &disk); err != nil {
					return err
				}
				e, err := toAuditEntry(disk)
				if err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

// Reset drops every audit entry; the broker calls it at start so each run
// begins with an empty log.
func (r AuditRepository) Reset() error {
	return r.db.DropPrefix([]byte(auditPrefix))
}

func auditKey(e domain.AuditEntry) string {
	return fmt.Sprintf("%s%019d:%s", auditPrefix, e.At.UnixNano(), e.ID)
}

func fromAuditEntry(e domain.AuditEntry) DiskAuditEntry {
	return DiskAuditEntry{
		ID:        e.ID.String(),
		At:        e.At.UnixNano(),
		Sender:    e.Sender,
		Recipient: e.Recipient,
		Text:      e.Text,
		Type:      string(e.Type),
	}
}

func toAuditEntry(d DiskAuditEntry) (domain.AuditEntry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	return domain.AuditEntry{
		ID:        id,
		At:        time.Unix(0, d.At).UTC(),
		Sender:    d.Sender,
		Recipient: d.Recipient,
		Text:      d.Text,
		Type:      domain.MessageType(d.Type),
	}, nil
}
