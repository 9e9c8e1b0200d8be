package model

import "time"

type SendStatus string

const (
	SendStatusSending SendStatus = "sending"
	SendStatusSent    SendStatus = "sent"
	SendStatusFailed  SendStatus = "failed"
)

func (s SendStatus) String() string {
	return string(s)
}

func (s SendStatus) Valid() bool {
	return s == SendStatusSending || s == SendStatusSent || s == SendStatusFailed
}

// SendRecord is the dedup ledger row persisted in email_sends. The unique key
// (agent_id, submission_id) is what makes a send at-most-once: the claim
// insert ignores duplicates, so only the first writer owns the row.
type SendRecord struct {
	ID                string     `db:"id"` // ULID
	AgentID           int64      `db:"agent_id"`
	SubmissionID      string     `db:"submission_id"`
	ToEmail           string     `db:"to_email"`
	Subject           string     `db:"subject"`
	BodyText          string     `db:"body_text"`
	BodyHTML          *string    `db:"body_html"` // nullable
	Provider          string     `db:"provider"`
	Status            SendStatus `db:"status"`
	ProviderMessageID *string    `db:"provider_message_id"`
	ErrorMessage      *string    `db:"error_message"`
	SentAt            *time.Time `db:"sent_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// OutboundMessage is the rendered message handed to the RFC 822 composer.
// Ephemeral: built per send, never persisted.
type OutboundMessage struct {
	FromName   string
	FromAddr   string
	To         string
	Subject    string
	Text       string
	HTML       string // empty => single-part text/plain
	ReplyTo    string
	InReplyTo  string
	References string
}
