package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SendEvent is the analytics row appended to ClickHouse on every terminal
// send outcome. Best-effort: the MySQL ledger stays authoritative.
type SendEvent struct {
	AgentID           int64     `db:"agent_id" json:"agent_id"`
	SubmissionID      string    `db:"submission_id" json:"submission_id"`
	ToEmail           string    `db:"to_email" json:"to_email"`
	Subject           string    `db:"subject" json:"subject"`
	Status            string    `db:"status" json:"status"` // sent|failed
	Kind              string    `db:"kind" json:"kind"`     // live|test
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id"`
	ErrorMessage      string    `db:"error_message" json:"error_message"`
	EventTime         time.Time `db:"event_time" json:"event_time"`
}

// CHSendsRepository writes and lists send events in ClickHouse.
type CHSendsRepository interface {
	InsertEvent(ctx context.Context, ev SendEvent) error
	ListByAgent(ctx context.Context, agentID int64, status string, limit, offset int) ([]SendEvent, error)
}

type chSendsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHSendsRepository(ch *sqlx.DB) CHSendsRepository {
	return &chSendsRepository{ch: ch}
}

func (r *chSendsRepository) InsertEvent(ctx context.Context, ev SendEvent) error {
	const q = `
		INSERT INTO mailgate.send_events
		    (agent_id, submission_id, to_email, subject, status, kind, provider_message_id, error_message, event_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.ch.ExecContext(ctx, q,
		ev.AgentID, ev.SubmissionID, ev.ToEmail, ev.Subject, ev.Status, ev.Kind,
		ev.ProviderMessageID, ev.ErrorMessage, ev.EventTime,
	)
	return err
}

func (r *chSendsRepository) ListByAgent(ctx context.Context, agentID int64, status string, limit, offset int) ([]SendEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT agent_id, submission_id, to_email, subject, status, kind, provider_message_id, error_message, event_time
		FROM mailgate.send_events
		WHERE agent_id = ?
	`
	args := []any{agentID}

	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}

	q += " ORDER BY event_time DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []SendEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
