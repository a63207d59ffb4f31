package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// AuditTimeLayout is the timestamp column format of the audit file.
const AuditTimeLayout = "2006-01-02 15:04:05"

var auditHeader = []string{"Timestamp", "Sender", "Recipient", "Message", "Type"}

var _ contract.AuditSink = (*CSVAudit)(nil)

// CSVAudit appends one row per delivered message to a CSV file.
// The file is recreated empty, header only, when the sink is opened.
type CSVAudit struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func NewCSVAudit(path string) (*CSVAudit, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create audit file %s: %w", path, err)
	}
	c := &CSVAudit{file: file, writer: csv.NewWriter(file)}
	if err := c.write(auditHeader); err != nil {
		_ = file.Close()
		return nil, err
	}
	return c, nil
}

func (c *CSVAudit) Consume(_ context.Context, e domain.AuditEntry) error {
	return c.write([]string{
		e.At.Format(AuditTimeLayout),
		e.Sender,
		e.Recipient,
		e.Text,
		string(e.Type),
	})
}

func (c *CSVAudit) write(row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writer.Write(row); err != nil {
		return err
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVAudit) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
