package contract_test

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/storage"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"testing"

	"github.com/stretchr/testify/require"
)

// The generated mocks must keep up with the interfaces they stand for.
var (
	_ contract.ISupervisor     = (*mocks.MockISupervisor)(nil)
	_ contract.Worker          = (*mocks.MockWorker)(nil)
	_ contract.PayloadSink     = (*mocks.MockPayloadSink)(nil)
	_ contract.AuditSink       = (*mocks.MockAuditSink)(nil)
	_ contract.IRegistry       = (*mocks.MockIRegistry)(nil)
	_ contract.IRegistry       = (*runtime.Registry)(nil)
	_ storage.IAuditRepository = (*mocks.MockIAuditRepository)(nil)
)

func TestGetWorkerName(t *testing.T) {
	req := require.New(t)

	req.Equal("ReporterWorker", contract.GetWorkerName(workers.NewReporterWorker(nil, nil, 0)))
	req.Equal("MockWorker", contract.GetWorkerName(&mocks.MockWorker{}))
	req.Equal("NilWorker", contract.GetWorkerName(nil))
}
