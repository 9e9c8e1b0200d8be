package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hostwell/mailgate/internal/metrics"
	"github.com/hostwell/mailgate/internal/model"
	"github.com/hostwell/mailgate/internal/repository"
	"github.com/hostwell/mailgate/internal/rfc822"
	"github.com/hostwell/mailgate/internal/util"
	"go.uber.org/zap"
)

const (
	providerName = "gmail"

	// fallbackSenderName is the last resort when neither the template nor the
	// workspace configures a display name.
	fallbackSenderName = "Open House Team"

	// errorDetailCap bounds the error payload persisted in the ledger.
	errorDetailCap = 1000
)

var (
	// ErrNotConnected means the agent has no Gmail connection (or an empty
	// refresh token) on file; the agent must re-authorize out of band.
	ErrNotConnected = errors.New("gmail connection missing or incomplete")

	// ErrInFlight means another dispatch for the same submission holds the
	// in-flight gate right now.
	ErrInFlight = errors.New("submission already in flight")
)

// UpstreamError wraps a provider-side failure. Stage "auth" (token refresh)
// leaves the claim in `sending` so a retry can proceed; stage "send" moves the
// ledger row to `failed`.
type UpstreamError struct {
	Stage  string // "auth" | "send"
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s error: %s", e.Stage, e.Detail)
}

// TokenSource mints an access token from a stored refresh token.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Provider transmits a raw RFC 822 message and returns the provider message id.
type Provider interface {
	SendRaw(ctx context.Context, accessToken string, raw []byte, threadID string) (string, error)
}

// SendInput is one outbound email request, already rendered.
type SendInput struct {
	To           string
	Subject      string
	Text         string
	HTML         string
	SubmissionID string
	ThreadID     string
	SenderName   string // per-template sender display name, optional
	InReplyTo    string // test sends only
	References   string
}

// SendResult reports the outcome. AlreadySent distinguishes "nothing new was
// transmitted" from "an email went out"; both are success.
type SendResult struct {
	AlreadySent bool
	MessageID   string
}

// Dispatcher orchestrates one outbound email with at-most-once semantics per
// (agent, submission): claim the ledger row, short-circuit on `sent`, refresh
// the OAuth token, compose, transmit, record the terminal state.
type Dispatcher struct {
	sends   repository.SendsRepository
	conns   repository.ConnectionsRepository
	history repository.CHSendsRepository // optional
	tokens  TokenSource
	prov    Provider
	gate    *Gate // optional

	defaultSender string
	log           *zap.Logger
	now           func() time.Time
}

func New(
	sends repository.SendsRepository,
	conns repository.ConnectionsRepository,
	history repository.CHSendsRepository,
	tokens TokenSource,
	prov Provider,
	gate *Gate,
	defaultSender string,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		sends:         sends,
		conns:         conns,
		history:       history,
		tokens:        tokens,
		prov:          prov,
		gate:          gate,
		defaultSender: defaultSender,
		log:           log,
		now:           time.Now,
	}
}

// Dispatch runs the full at-most-once send for a submission.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID int64, in SendInput) (SendResult, error) {
	rec := model.SendRecord{
		ID:           util.New(),
		AgentID:      agentID,
		SubmissionID: in.SubmissionID,
		ToEmail:      in.To,
		Subject:      in.Subject,
		BodyText:     in.Text,
		Provider:     providerName,
		Status:       model.SendStatusSending,
	}
	if strings.TrimSpace(in.HTML) != "" {
		rec.BodyHTML = &in.HTML
	}

	// First writer wins; losers fall through to the re-read.
	if err := d.sends.Claim(ctx, rec); err != nil {
		return SendResult{}, fmt.Errorf("claim submission: %w", err)
	}
	metrics.EmailsTotal.WithLabelValues("claimed", "live").Inc()

	cur, err := d.sends.GetBySubmission(ctx, agentID, in.SubmissionID)
	if err != nil {
		return SendResult{}, fmt.Errorf("read submission: %w", err)
	}
	if cur == nil {
		return SendResult{}, fmt.Errorf("submission %s vanished after claim", in.SubmissionID)
	}
	if cur.SentAt != nil {
		metrics.EmailsTotal.WithLabelValues("deduped", "live").Inc()
		res := SendResult{AlreadySent: true}
		if cur.ProviderMessageID != nil {
			res.MessageID = *cur.ProviderMessageID
		}
		return res, nil
	}

	if d.gate != nil {
		if !d.gate.TryAcquire(ctx, agentID, in.SubmissionID) {
			return SendResult{}, ErrInFlight
		}
		defer d.gate.Release(ctx, agentID, in.SubmissionID)
	}

	msgID, err := d.transmit(ctx, agentID, in)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Stage == "send" {
			// Terminal: the provider rejected the send.
			if merr := d.sends.MarkFailed(ctx, agentID, in.SubmissionID, ue.Detail); merr != nil {
				d.log.Error("mark failed", zap.String("submission_id", in.SubmissionID), zap.Error(merr))
			}
			metrics.EmailsTotal.WithLabelValues("failed", "live").Inc()
			d.recordEvent(ctx, agentID, in, "failed", "live", "", ue.Detail)
		}
		// Auth/config failures leave the row in `sending`; a retry re-enters
		// at the re-read and proceeds.
		return SendResult{}, err
	}

	sentAt := d.now()
	if merr := d.sends.MarkSent(ctx, agentID, in.SubmissionID, msgID, sentAt); merr != nil {
		// The email is out; a stuck `sending` row risks a duplicate on retry.
		d.log.Error("mark sent after provider success",
			zap.String("submission_id", in.SubmissionID),
			zap.String("provider_message_id", msgID),
			zap.Error(merr))
	}
	metrics.EmailsTotal.WithLabelValues("sent", "live").Inc()
	d.recordEvent(ctx, agentID, in, "sent", "live", msgID, "")

	return SendResult{MessageID: msgID}, nil
}

// DispatchTest sends without touching the ledger or the gate. Used by the
// template editor's "send me a test" action; supports reply threading.
func (d *Dispatcher) DispatchTest(ctx context.Context, agentID int64, in SendInput) (string, error) {
	msgID, err := d.transmit(ctx, agentID, in)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Stage == "send" {
			metrics.EmailsTotal.WithLabelValues("failed", "test").Inc()
			d.recordEvent(ctx, agentID, in, "failed", "test", "", ue.Detail)
		}
		return "", err
	}
	metrics.EmailsTotal.WithLabelValues("sent", "test").Inc()
	d.recordEvent(ctx, agentID, in, "sent", "test", msgID, "")
	return msgID, nil
}

// transmit performs the provider-facing steps: connection lookup, token
// refresh, compose, send. It mutates nothing in the ledger.
func (d *Dispatcher) transmit(ctx context.Context, agentID int64, in SendInput) (string, error) {
	conn, err := d.conns.GetByAgent(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("load gmail connection: %w", err)
	}
	if conn == nil || strings.TrimSpace(conn.RefreshToken) == "" {
		return "", ErrNotConnected
	}

	token, err := d.tokens.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return "", &UpstreamError{Stage: "auth", Detail: util.Truncate(err.Error(), errorDetailCap)}
	}

	raw := rfc822.Compose(model.OutboundMessage{
		FromName:   d.senderName(in.SenderName),
		FromAddr:   conn.Email,
		To:         in.To,
		Subject:    in.Subject,
		Text:       in.Text,
		HTML:       in.HTML,
		InReplyTo:  in.InReplyTo,
		References: in.References,
	})

	msgID, err := d.prov.SendRaw(ctx, token, raw, in.ThreadID)
	if err != nil {
		return "", &UpstreamError{Stage: "send", Detail: util.Truncate(err.Error(), errorDetailCap)}
	}
	return msgID, nil
}

// senderName resolves the From display name: per-template name, workspace
// default, global fallback.
func (d *Dispatcher) senderName(templateName string) string {
	if n := strings.TrimSpace(templateName); n != "" {
		return n
	}
	if n := strings.TrimSpace(d.defaultSender); n != "" {
		return n
	}
	return fallbackSenderName
}

// recordEvent appends a send-history row to ClickHouse, best-effort.
func (d *Dispatcher) recordEvent(ctx context.Context, agentID int64, in SendInput, status, kind, msgID, errDetail string) {
	if d.history == nil {
		return
	}
	ev := repository.SendEvent{
		AgentID:           agentID,
		SubmissionID:      in.SubmissionID,
		ToEmail:           in.To,
		Subject:           in.Subject,
		Status:            status,
		Kind:              kind,
		ProviderMessageID: msgID,
		ErrorMessage:      errDetail,
		EventTime:         d.now(),
	}
	if err := d.history.InsertEvent(ctx, ev); err != nil {
		d.log.Warn("send event insert", zap.String("submission_id", in.SubmissionID), zap.Error(err))
	}
}
