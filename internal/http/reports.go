package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hostwell/mailgate/internal/http/middleware"
	"github.com/hostwell/mailgate/internal/model"
	"github.com/hostwell/mailgate/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listSendsHandler(chRepo repository.CHSendsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		agentID, ok := middleware.AgentIDFromCtx(c)
		if !ok || agentID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var status string
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			// Only terminal states land in the history stream.
			if s := model.SendStatus(raw); s == model.SendStatusSent || s == model.SendStatusFailed {
				status = raw
			}
		}

		events, err := chRepo.ListByAgent(c.Request().Context(), agentID, status, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(events),
			"results": events,
		})
	}
}
