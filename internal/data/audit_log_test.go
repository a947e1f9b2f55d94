package data

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBufferedAuditLogger builds a logger without the writer goroutine so tests
// can inspect enqueued rows deterministically.
func newBufferedAuditLogger(buffer int) *AuditLoggerImpl {
	return &AuditLoggerImpl{
		logChan: make(chan *AuditLog, buffer),
		logger:  log.NewHelper(log.NewStdLogger(os.Stdout)),
	}
}

func TestAuditLogger_LogStateChangeRow(t *testing.T) {
	al := newBufferedAuditLogger(10)

	al.LogStateChange(context.Background(), "payments", model.StateClosed, model.StateOpen, "failure threshold reached")

	var row *AuditLog
	select {
	case row = <-al.logChan:
	default:
		t.Fatal("expected one enqueued audit row")
	}

	assert.Equal(t, "payments", row.CircuitID)
	assert.Equal(t, auditEventStateChanged, row.EventType)

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Details), &details))
	assert.Equal(t, "CLOSED", details["old_state"])
	assert.Equal(t, "OPEN", details["new_state"])
	assert.Equal(t, "failure threshold reached", details["reason"])
}

func TestAuditLogger_LogForcedResetRow(t *testing.T) {
	al := newBufferedAuditLogger(10)

	al.LogForcedReset(context.Background(), "payments", "manual recovery after incident")

	row := <-al.logChan
	assert.Equal(t, auditEventForcedReset, row.EventType)

	var details map[string]string
	require.NoError(t, json.Unmarshal([]byte(row.Details), &details))
	assert.Equal(t, "manual recovery after incident", details["note"])
}

func TestAuditLogger_FullBufferDropsWithoutBlocking(t *testing.T) {
	al := newBufferedAuditLogger(1)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		al.LogForcedReset(ctx, "payments", "first")
		al.LogForcedReset(ctx, "payments", "dropped")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}
	assert.Len(t, al.logChan, 1)
}

func TestAuditLogger_NoDatabaseDegradesToLogs(t *testing.T) {
	al := NewAuditLogger(nil, log.NewStdLogger(os.Stdout))

	al.LogStateChange(context.Background(), "payments", model.StateOpen, model.StateHalfOpen, "reset timeout elapsed")

	// the writer goroutine drains the channel even without a database
	assert.Eventually(t, func() bool { return len(al.logChan) == 0 }, time.Second, 10*time.Millisecond)
}
