package http

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/hostwell/mailgate/internal/dispatcher"
	"github.com/hostwell/mailgate/internal/http/middleware"
	"github.com/hostwell/mailgate/internal/model"
	"github.com/hostwell/mailgate/internal/repository"
	"github.com/hostwell/mailgate/internal/template"
	echo "github.com/labstack/echo/v4"
)

func listTemplatesHandler(templates repository.TemplatesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		list, err := templates.List(c.Request().Context(), agentID)
		if err != nil {
			c.Logger().Errorf("list templates failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
		}

		return c.JSON(http.StatusOK, map[string]any{"count": len(list), "results": list})
	}
}

type upsertTemplateReq struct {
	Subject    string               `json:"subject"`
	BodyText   string               `json:"body_text"`
	BodyHTML   string               `json:"body_html"`
	SenderName *string              `json:"sender_name"`
	Variables  []model.VariableDecl `json:"variables"`
}

func upsertTemplateHandler(templates repository.TemplatesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		name := strings.TrimSpace(c.Param("name"))
		if name == "" || len(name) > 128 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "invalid template name"})
		}

		var req upsertTemplateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
		}
		if strings.TrimSpace(req.Subject) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "subject is required"})
		}

		err := templates.Upsert(c.Request().Context(), model.Template{
			AgentID:    agentID,
			Name:       name,
			Subject:    req.Subject,
			BodyText:   req.BodyText,
			BodyHTML:   req.BodyHTML,
			SenderName: req.SenderName,
			Variables:  req.Variables,
		})
		if err != nil {
			c.Logger().Errorf("upsert template failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
		}

		return c.JSON(http.StatusOK, map[string]any{"ok": true, "name": name})
	}
}

type renderTemplateReq struct {
	Template  string            `json:"template"`
	Overrides map[string]string `json:"overrides"`
}

// renderTemplateHandler is the server-side twin of the mobile client's local
// preview: it renders subject and both bodies with override/example fallback.
func renderTemplateHandler(templates repository.TemplatesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req renderTemplateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
		}
		req.Template = strings.TrimSpace(req.Template)
		if req.Template == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "template is required"})
		}

		t, err := templates.GetByName(c.Request().Context(), agentID, req.Template)
		if err != nil {
			c.Logger().Errorf("load template failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
		}
		if t == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "template_not_found"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"subject":   template.Render(t.Subject, t.Variables, req.Overrides),
			"text":      template.Render(t.BodyText, t.Variables, req.Overrides),
			"html":      template.Render(t.BodyHTML, t.Variables, req.Overrides),
			"variables": template.Scan(t.Subject + "\n" + t.BodyText + "\n" + t.BodyHTML),
		})
	}
}

type sendTemplateReq struct {
	Template     string            `json:"template"`
	Overrides    map[string]string `json:"overrides"`
	To           string            `json:"to"`
	SubmissionID string            `json:"submission_id"`
	ThreadID     string            `json:"thread_id"`
}

// sendTemplateHandler renders a stored template and dispatches it in one call.
func sendTemplateHandler(templates repository.TemplatesRepository, disp *dispatcher.Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req sendTemplateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request"})
		}
		req.Template = strings.TrimSpace(req.Template)
		req.To = strings.TrimSpace(req.To)
		req.SubmissionID = strings.TrimSpace(req.SubmissionID)
		if req.Template == "" || req.To == "" || req.SubmissionID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "template, to and submission_id are required"})
		}
		if _, err := mail.ParseAddress(req.To); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "detail": "invalid to address"})
		}

		t, err := templates.GetByName(c.Request().Context(), agentID, req.Template)
		if err != nil {
			c.Logger().Errorf("load template failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal"})
		}
		if t == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "template_not_found"})
		}

		in := dispatcher.SendInput{
			To:           req.To,
			Subject:      template.Render(t.Subject, t.Variables, req.Overrides),
			Text:         template.Render(t.BodyText, t.Variables, req.Overrides),
			HTML:         template.Render(t.BodyHTML, t.Variables, req.Overrides),
			SubmissionID: req.SubmissionID,
			ThreadID:     req.ThreadID,
		}
		if t.SenderName != nil {
			in.SenderName = *t.SenderName
		}

		res, err := disp.Dispatch(c.Request().Context(), agentID, in)
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
