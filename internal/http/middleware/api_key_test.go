package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hostwell/mailgate/internal/model"
	echo "github.com/labstack/echo/v4"
)

type fakeAgents struct {
	byKey map[string]*model.Agent
}

func (f *fakeAgents) GetByAPIKey(_ context.Context, key string) (*model.Agent, error) {
	return f.byKey[key], nil
}

func runAuth(agents *fakeAgents, apiKey string) (*httptest.ResponseRecorder, echo.Context, bool) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	next := func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	}
	_ = APIKeyMiddleware(agents)(next)(c)
	return rec, c, reached
}

func TestAPIKeyMiddleware(t *testing.T) {
	rps := 5
	agents := &fakeAgents{byKey: map[string]*model.Agent{
		"good-key":      {ID: 7, Status: "active", RateLimitRPS: &rps},
		"suspended-key": {ID: 8, Status: "suspended"},
	}}

	t.Run("missing key", func(t *testing.T) {
		rec, _, reached := runAuth(agents, "")
		if rec.Code != http.StatusUnauthorized || reached {
			t.Fatalf("status = %d, reached = %v", rec.Code, reached)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		rec, _, reached := runAuth(agents, "nope")
		if rec.Code != http.StatusUnauthorized || reached {
			t.Fatalf("status = %d, reached = %v", rec.Code, reached)
		}
	})

	t.Run("suspended agent", func(t *testing.T) {
		rec, _, reached := runAuth(agents, "suspended-key")
		if rec.Code != http.StatusUnauthorized || reached {
			t.Fatalf("status = %d, reached = %v", rec.Code, reached)
		}
	})

	t.Run("active agent", func(t *testing.T) {
		rec, c, reached := runAuth(agents, "good-key")
		if rec.Code != http.StatusOK || !reached {
			t.Fatalf("status = %d, reached = %v", rec.Code, reached)
		}
		id, ok := AgentIDFromCtx(c)
		if !ok || id != 7 {
			t.Fatalf("agent_id = %d, ok = %v", id, ok)
		}
		if got, _ := c.Get("agent_rps").(int); got != 5 {
			t.Fatalf("agent_rps = %v", c.Get("agent_rps"))
		}
	})
}
