package data

import (
	"context"
	"encoding/json"
	"time"

	"FuseBox/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// AuditLog is the GORM model for circuit_audit_logs table
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	CircuitID string    `gorm:"column:circuit_id;type:varchar(191);not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "circuit_audit_logs"
}

// Audit event type constants
const (
	auditEventStateChanged = "STATE_CHANGED"
	auditEventForcedReset  = "FORCED_RESET"
)

// AuditLoggerImpl implements biz.AuditLogger. Rows are written by a background
// goroutine fed from a buffered channel so the execution path never waits on
// the database; when the buffer is full the event is dropped with a warning.
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *AuditLog
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel
func NewAuditLogger(db *gorm.DB, logger log.Logger) *AuditLoggerImpl {
	al := &AuditLoggerImpl{
		db:      db,
		logChan: make(chan *AuditLog, 1000), // Buffer size 1000 to prevent blocking
		logger:  log.NewHelper(logger),
	}

	// Start background goroutine for async logging
	go al.start()

	return al
}

// start processes audit log events from channel
func (a *AuditLoggerImpl) start() {
	for event := range a.logChan {
		if a.db == nil {
			// no audit database configured, keep the structured log only
			a.logger.Infow("circuit audit event (db-less mode)",
				"circuit_id", event.CircuitID,
				"event_type", event.EventType,
				"details", event.Details)
			continue
		}

		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(event).Error; err != nil {
			a.logger.Errorw("failed to write audit log",
				"circuit_id", event.CircuitID,
				"event_type", event.EventType,
				"error", err)
		} else {
			a.logger.Debugw("audit log written",
				"circuit_id", event.CircuitID,
				"event_type", event.EventType)
		}
	}
}

// LogStateChange records a circuit transition in the audit trail.
func (a *AuditLoggerImpl) LogStateChange(_ context.Context, circuitID string, oldState, newState model.CircuitState, reason string) {
	details, _ := json.Marshal(map[string]interface{}{
		"old_state": oldState.String(),
		"new_state": newState.String(),
		"reason":    reason,
	})

	a.enqueue(&AuditLog{
		CircuitID: circuitID,
		EventType: auditEventStateChanged,
		Details:   string(details),
	})
}

// LogForcedReset records an admin force-reset in the audit trail.
func (a *AuditLoggerImpl) LogForcedReset(_ context.Context, circuitID string, note string) {
	details, _ := json.Marshal(map[string]interface{}{
		"note": note,
	})

	a.enqueue(&AuditLog{
		CircuitID: circuitID,
		EventType: auditEventForcedReset,
		Details:   string(details),
	})
}

// enqueue hands an event to the writer goroutine without ever blocking.
func (a *AuditLoggerImpl) enqueue(event *AuditLog) {
	select {
	case a.logChan <- event:
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"circuit_id", event.CircuitID,
			"event_type", event.EventType)
	}
}
