package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hostwell/mailgate/internal/model"
	"github.com/jmoiron/sqlx"
)

type TemplatesRepository interface {
	GetByName(ctx context.Context, agentID int64, name string) (*model.Template, error)
	List(ctx context.Context, agentID int64) ([]model.Template, error)
	Upsert(ctx context.Context, t model.Template) error
}

type TemplatesRepositoryImpl struct {
	db *sqlx.DB
}

func NewTemplatesRepository(db *sqlx.DB) *TemplatesRepositoryImpl {
	return &TemplatesRepositoryImpl{db: db}
}

var _ TemplatesRepository = (*TemplatesRepositoryImpl)(nil)

// templateRow carries the raw variables JSON column alongside the entity.
type templateRow struct {
	ID         int64     `db:"id"`
	AgentID    int64     `db:"agent_id"`
	Name       string    `db:"name"`
	Subject    string    `db:"subject"`
	BodyText   string    `db:"body_text"`
	BodyHTML   string    `db:"body_html"`
	SenderName *string   `db:"sender_name"`
	Variables  []byte    `db:"variables"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row templateRow) toModel() (model.Template, error) {
	t := model.Template{
		ID:         row.ID,
		AgentID:    row.AgentID,
		Name:       row.Name,
		Subject:    row.Subject,
		BodyText:   row.BodyText,
		BodyHTML:   row.BodyHTML,
		SenderName: row.SenderName,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &t.Variables); err != nil {
			return model.Template{}, fmt.Errorf("decode variables for template %q: %w", row.Name, err)
		}
	}
	t.Variables = model.DedupeVariables(t.Variables)
	return t, nil
}

func (r *TemplatesRepositoryImpl) GetByName(ctx context.Context, agentID int64, name string) (*model.Template, error) {
	var row templateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, agent_id, name, subject, body_text, body_html, sender_name, variables, created_at, updated_at
		  FROM email_templates
		 WHERE agent_id = ? AND name = ? LIMIT 1
	`, agentID, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplatesRepositoryImpl) List(ctx context.Context, agentID int64) ([]model.Template, error) {
	var rows []templateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, agent_id, name, subject, body_text, body_html, sender_name, variables, created_at, updated_at
		  FROM email_templates
		 WHERE agent_id = ?
		 ORDER BY name
	`, agentID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Template, 0, len(rows))
	for _, row := range rows {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *TemplatesRepositoryImpl) Upsert(ctx context.Context, t model.Template) error {
	vars, err := json.Marshal(model.DedupeVariables(t.Variables))
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	const q = `
		INSERT INTO email_templates
		    (agent_id, name, subject, body_text, body_html, sender_name, variables, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    subject     = VALUES(subject),
		    body_text   = VALUES(body_text),
		    body_html   = VALUES(body_html),
		    sender_name = VALUES(sender_name),
		    variables   = VALUES(variables),
		    updated_at  = NOW()
	`
	_, err = r.db.ExecContext(ctx, q, t.AgentID, t.Name, t.Subject, t.BodyText, t.BodyHTML, t.SenderName, vars)
	return err
}
