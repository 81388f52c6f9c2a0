// Package audit persists a record of every terminal failure (a fatal
// classification or retry exhaustion) to Postgres, grounded on the
// teacher's internal/management.AuditLogger, generalized from rule
// change history to executor terminal outcomes.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"changeprop/pkg/models"
)

// Logger persists terminal-failure entries. A nil *sql.DB (no Postgres
// configured) degrades Log to a no-op, since audit persistence is
// optional per SPEC_FULL.md §6.
type Logger struct {
	db *sql.DB
}

func New(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Entry mirrors one row of change_prop_audit_log.
type Entry struct {
	RuleName    string
	TriggeredBy string
	Reason      string
	Status      int
	RequestID   string
	URI         string
	OccurredAt  time.Time
}

func (l *Logger) Log(ctx context.Context, e Entry) error {
	if l.db == nil {
		return nil
	}

	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	var status *int
	if e.Status != 0 {
		status = &e.Status
	}

	const query = `
		INSERT INTO change_prop_audit_log (rule_name, triggered_by, reason, status, request_id, uri, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := l.db.ExecContext(ctx, query,
		e.RuleName, e.TriggeredBy, e.Reason, status, e.RequestID, e.URI, occurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log entry: %w", err)
	}
	return nil
}

// FromErrorEnvelope builds an Entry from an ErrorEnvelope, the shape
// the executor already has in hand when a terminal failure occurs.
func FromErrorEnvelope(env models.ErrorEnvelope) Entry {
	return Entry{
		RuleName:    env.RuleName,
		TriggeredBy: env.TriggeredBy,
		Reason:      env.Reason,
		Status:      env.Status,
		RequestID:   env.Event.Meta.RequestID,
		URI:         env.Event.Meta.URI,
		OccurredAt:  env.OccurredAt,
	}
}
