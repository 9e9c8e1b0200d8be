package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hostwell/mailgate/internal/model"
	echo "github.com/labstack/echo/v4"
)

type fakeTemplates struct {
	byName map[string]*model.Template
	saved  []model.Template
}

func (f *fakeTemplates) GetByName(_ context.Context, _ int64, name string) (*model.Template, error) {
	return f.byName[name], nil
}

func (f *fakeTemplates) List(context.Context, int64) ([]model.Template, error) {
	out := make([]model.Template, 0, len(f.byName))
	for _, t := range f.byName {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTemplates) Upsert(_ context.Context, t model.Template) error {
	f.saved = append(f.saved, t)
	return nil
}

func followupTemplate() *model.Template {
	return &model.Template{
		AgentID:  7,
		Name:     "followup",
		Subject:  "Great meeting you at {{address}}",
		BodyText: "Hi {{firstname}}, thanks for visiting {{address}}.",
		BodyHTML: "<p>Hi {{firstname}}</p>",
		Variables: []model.VariableDecl{
			{Key: "firstname", Label: "First name", Example: "there"},
			{Key: "address", Label: "Address", Example: "the open house"},
		},
	}
}

func TestRenderTemplateHandler(t *testing.T) {
	repo := &fakeTemplates{byName: map[string]*model.Template{"followup": followupTemplate()}}
	h := renderTemplateHandler(repo)

	rec := doJSON(h, http.MethodPost, "/v1/templates/render",
		`{"template":"followup","overrides":{"firstname":"Ana"}}`, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)

	// Override wins for firstname, example fills address.
	if got["text"] != "Hi Ana, thanks for visiting the open house." {
		t.Fatalf("text = %v", got["text"])
	}
	if got["subject"] != "Great meeting you at the open house" {
		t.Fatalf("subject = %v", got["subject"])
	}
	vars, ok := got["variables"].([]any)
	if !ok || len(vars) != 2 {
		t.Fatalf("variables = %v", got["variables"])
	}
}

func TestRenderTemplateHandlerNotFound(t *testing.T) {
	h := renderTemplateHandler(&fakeTemplates{byName: map[string]*model.Template{}})
	rec := doJSON(h, http.MethodPost, "/v1/templates/render", `{"template":"nope"}`, 7)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "template_not_found" {
		t.Fatalf("error = %v", got)
	}
}

func TestUpsertTemplateHandler(t *testing.T) {
	repo := &fakeTemplates{byName: map[string]*model.Template{}}
	h := upsertTemplateHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/v1/templates/followup",
		strings.NewReader(`{"subject":"Hello {{firstname}}","body_text":"hi","variables":[{"key":"firstname","example":"there"}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/templates/:name")
	c.SetParamNames("name")
	c.SetParamValues("followup")
	c.Set("agent_id", int64(7))

	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved %d templates, want 1", len(repo.saved))
	}
	saved := repo.saved[0]
	if saved.AgentID != 7 || saved.Name != "followup" || len(saved.Variables) != 1 {
		t.Fatalf("saved template: %+v", saved)
	}
}

func TestSendTemplateHandler(t *testing.T) {
	repo := &fakeTemplates{byName: map[string]*model.Template{"followup": followupTemplate()}}
	sends := newFakeSends()
	conns := &fakeConns{conn: &model.GmailConnection{AgentID: 7, Email: "agent@gmail.com", RefreshToken: "rt"}}
	h := sendTemplateHandler(repo, newTestDispatcher(sends, conns, &fakeProvider{}))

	rec := doJSON(h, http.MethodPost, "/v1/email/send-template",
		`{"template":"followup","to":"buyer@example.com","submission_id":"sub-9","overrides":{"firstname":"Ana","address":"12 Elm St"}}`, 7)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeBody(t, rec)
	if got["ok"] != true || got["id"] != "gm-msg-1" {
		t.Fatalf("response: %v", got)
	}

	stored, _ := sends.GetBySubmission(context.Background(), 7, "sub-9")
	if stored == nil {
		t.Fatal("no ledger row written")
	}
	if stored.Subject != "Great meeting you at 12 Elm St" {
		t.Fatalf("subject = %q", stored.Subject)
	}
	if !strings.Contains(stored.BodyText, "Hi Ana") {
		t.Fatalf("body = %q", stored.BodyText)
	}
}

func TestSendTemplateHandlerMissingTemplate(t *testing.T) {
	h := sendTemplateHandler(&fakeTemplates{byName: map[string]*model.Template{}}, nil)
	rec := doJSON(h, http.MethodPost, "/v1/email/send-template",
		`{"template":"nope","to":"a@b.com","submission_id":"sub-1"}`, 7)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
