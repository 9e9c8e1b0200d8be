package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/hostwell/mailgate/internal/dispatcher"
	"github.com/hostwell/mailgate/internal/http/middleware"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type sendReq struct {
	To           string `json:"to"`
	Subject      string `json:"subject"`
	Text         string `json:"text"`
	HTML         string `json:"html"`
	SubmissionID string `json:"submission_id"`
	ThreadID     string `json:"thread_id"`
}

type sendTestReq struct {
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Text       string `json:"text"`
	HTML       string `json:"html"`
	ThreadID   string `json:"thread_id"`
	InReplyTo  string `json:"in_reply_to"`
	References string `json:"references"`
}

func sendEmailHandler(disp *dispatcher.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
		}

		req.To = strings.TrimSpace(req.To)
		req.Subject = strings.TrimSpace(req.Subject)
		req.SubmissionID = strings.TrimSpace(req.SubmissionID)

		if req.To == "" || req.Subject == "" || req.Text == "" || req.SubmissionID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "to, subject, text and submission_id are required"})
		}
		if _, err := mail.ParseAddress(req.To); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "invalid to address"})
		}
		if len(req.SubmissionID) > 128 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "submission_id too long"})
		}

		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		res, err := disp.Dispatch(c.Request().Context(), agentID, dispatcher.SendInput{
			To:           req.To,
			Subject:      req.Subject,
			Text:         req.Text,
			HTML:         req.HTML,
			SubmissionID: req.SubmissionID,
			ThreadID:     req.ThreadID,
		})
		if err != nil {
			return sendError(c, err)
		}

		resp := map[string]any{"ok": true, "already_sent": res.AlreadySent}
		if res.MessageID != "" {
			resp["id"] = res.MessageID
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func sendTestEmailHandler(disp *dispatcher.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sendTestReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
		}

		req.To = strings.TrimSpace(req.To)
		req.Subject = strings.TrimSpace(req.Subject)

		if req.To == "" || req.Subject == "" || req.Text == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "to, subject and text are required"})
		}
		if _, err := mail.ParseAddress(req.To); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "invalid to address"})
		}

		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		id, err := disp.DispatchTest(c.Request().Context(), agentID, dispatcher.SendInput{
			To:         req.To,
			Subject:    req.Subject,
			Text:       req.Text,
			HTML:       req.HTML,
			ThreadID:   req.ThreadID,
			InReplyTo:  req.InReplyTo,
			References: req.References,
		})
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{"ok": true, "id": id})
	}
}

// sendError maps dispatcher failures onto the error taxonomy: config problems
// are the caller's to fix (4xx), provider problems are upstream (5xx-class).
func sendError(c echo.Context, err error) error {
	if errors.Is(err, dispatcher.ErrNotConnected) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "gmail_not_connected", "detail": "reconnect the Gmail account"})
	}
	if errors.Is(err, dispatcher.ErrInFlight) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "in_flight", "detail": "this submission is already being sent"})
	}

	var ue *dispatcher.UpstreamError
	if errors.As(err, &ue) {
		code := "upstream_send_error"
		if ue.Stage == "auth" {
			code = "upstream_auth_error"
		}
		return c.JSON(http.StatusBadGateway, map[string]string{"error": code, "detail": ue.Detail})
	}

	log.Errorf("send failed: %v", err)

	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
}
