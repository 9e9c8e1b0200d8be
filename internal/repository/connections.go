package repository

import (
	"context"
	"database/sql"

	"github.com/hostwell/mailgate/internal/model"
	"github.com/jmoiron/sqlx"
)

type ConnectionsRepository interface {
	// GetByAgent returns the agent's Gmail connection, or nil when the agent
	// never linked an account.
	GetByAgent(ctx context.Context, agentID int64) (*model.GmailConnection, error)
	Upsert(ctx context.Context, conn model.GmailConnection) error
}

type ConnectionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewConnectionsRepository(db *sqlx.DB) *ConnectionsRepositoryImpl {
	return &ConnectionsRepositoryImpl{db: db}
}

var _ ConnectionsRepository = (*ConnectionsRepositoryImpl)(nil)

func (r *ConnectionsRepositoryImpl) GetByAgent(ctx context.Context, agentID int64) (*model.GmailConnection, error) {
	var conn model.GmailConnection
	err := r.db.GetContext(ctx, &conn, `
		SELECT agent_id, email, refresh_token, scope, created_at, updated_at
		  FROM gmail_connections
		 WHERE agent_id = ? LIMIT 1
	`, agentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *ConnectionsRepositoryImpl) Upsert(ctx context.Context, conn model.GmailConnection) error {
	const q = `
		INSERT INTO gmail_connections (agent_id, email, refresh_token, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
		    email         = VALUES(email),
		    refresh_token = VALUES(refresh_token),
		    scope         = VALUES(scope),
		    updated_at    = NOW()
	`
	_, err := r.db.ExecContext(ctx, q, conn.AgentID, conn.Email, conn.RefreshToken, conn.Scope)
	return err
}
