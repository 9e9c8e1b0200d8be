package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hostwell/mailgate/internal/model"
	"github.com/jmoiron/sqlx"
)

// SendsRepository persists the email_sends dedup ledger. The unique key
// (agent_id, submission_id) is load-bearing: Claim relies on insert-ignore
// semantics so exactly one caller owns a submission.
type SendsRepository interface {
	// Claim inserts the record in `sending` state; a duplicate key is a no-op
	// (first writer wins).
	Claim(ctx context.Context, rec model.SendRecord) error
	// GetBySubmission returns the ledger row for the key, or nil when absent.
	GetBySubmission(ctx context.Context, agentID int64, submissionID string) (*model.SendRecord, error)
	MarkSent(ctx context.Context, agentID int64, submissionID, providerMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, agentID int64, submissionID, errorMessage string) error
}

type SendsRepositoryImpl struct {
	db *sqlx.DB
}

func NewSendsRepository(db *sqlx.DB) *SendsRepositoryImpl {
	return &SendsRepositoryImpl{db: db}
}

var _ SendsRepository = (*SendsRepositoryImpl)(nil)

func (r *SendsRepositoryImpl) Claim(ctx context.Context, rec model.SendRecord) error {
	const q = `
		INSERT INTO email_sends
		    (id, agent_id, submission_id, to_email, subject, body_text, body_html, provider, status, created_at, updated_at)
		VALUES
		    (?,  ?,        ?,             ?,        ?,       ?,         ?,         ?,        'sending', NOW(), NOW())
		ON DUPLICATE KEY UPDATE id = id
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.AgentID, rec.SubmissionID, rec.ToEmail, rec.Subject,
		rec.BodyText, rec.BodyHTML, rec.Provider,
	)
	return err
}

func (r *SendsRepositoryImpl) GetBySubmission(ctx context.Context, agentID int64, submissionID string) (*model.SendRecord, error) {
	var rec model.SendRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, agent_id, submission_id, to_email, subject, body_text, body_html,
		       provider, status, provider_message_id, error_message, sent_at, created_at, updated_at
		  FROM email_sends
		 WHERE agent_id = ? AND submission_id = ? LIMIT 1
	`, agentID, submissionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *SendsRepositoryImpl) MarkSent(ctx context.Context, agentID int64, submissionID, providerMessageID string, sentAt time.Time) error {
	const q = `
		UPDATE email_sends
		   SET status = 'sent', provider_message_id = ?, sent_at = ?, updated_at = NOW()
		 WHERE agent_id = ? AND submission_id = ?
	`
	_, err := r.db.ExecContext(ctx, q, providerMessageID, sentAt, agentID, submissionID)
	return err
}

func (r *SendsRepositoryImpl) MarkFailed(ctx context.Context, agentID int64, submissionID, errorMessage string) error {
	const q = `
		UPDATE email_sends
		   SET status = 'failed', error_message = ?, updated_at = NOW()
		 WHERE agent_id = ? AND submission_id = ?
	`
	_, err := r.db.ExecContext(ctx, q, errorMessage, agentID, submissionID)
	return err
}
