package model

import "time"

// GmailConnection holds the agent's linked Gmail account. The refresh token is
// exchanged for a short-lived access token on every send; the authorization
// flow that produced it lives outside this service.
type GmailConnection struct {
	AgentID      int64     `db:"agent_id"`
	Email        string    `db:"email"`
	RefreshToken string    `db:"refresh_token"`
	Scope        string    `db:"scope"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
