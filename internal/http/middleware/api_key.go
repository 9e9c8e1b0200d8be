package middleware

import (
	"net/http"
	"strings"

	"github.com/hostwell/mailgate/internal/repository"
	echo "github.com/labstack/echo/v4"
)

// AgentIDFromCtx extracts the authenticated agent_id set by APIKeyMiddleware.
func AgentIDFromCtx(c echo.Context) (int64, bool) {
	v := c.Get("agent_id")
	id, ok := v.(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using X-API-Key header.
// On success it stores agent_id in context and blocks suspended accounts.
func APIKeyMiddleware(agents repository.AgentsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			a, err := agents.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if a == nil || a.Status != "active" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("agent_id", a.ID)
			if a.RateLimitRPS != nil {
				c.Set("agent_rps", *a.RateLimitRPS)
			}
			return next(c)
		}
	}
}
