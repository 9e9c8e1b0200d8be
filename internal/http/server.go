package http

import (
	"context"
	"net/http"
	"time"

	"github.com/hostwell/mailgate/internal/config"
	"github.com/hostwell/mailgate/internal/dispatcher"
	"github.com/hostwell/mailgate/internal/gmail"
	"github.com/hostwell/mailgate/internal/http/middleware"
	"github.com/hostwell/mailgate/internal/metrics"
	"github.com/hostwell/mailgate/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, log *zap.Logger) *Server {
	// repos (MySQL)
	agentsRepo := repository.NewAgentsRepository(mysqlDB)
	sendsRepo := repository.NewSendsRepository(mysqlDB)
	connectionsRepo := repository.NewConnectionsRepository(mysqlDB)
	templatesRepo := repository.NewTemplatesRepository(mysqlDB)

	// repos (ClickHouse)
	chSendsRepo := repository.NewCHSendsRepository(clickhouseDB)

	// gmail clients
	tokens := gmail.NewTokenSource(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.TokenURL, cfg.Gmail.Timeout)
	provider := gmail.NewClient(cfg.Gmail.APIBaseURL, cfg.Gmail.Timeout)

	// in-flight gate (nil redis => gate disabled)
	var gate *dispatcher.Gate
	if rds != nil {
		gate = dispatcher.NewGate(rds, cfg.Sender.InFlightTTL)
	}

	disp := dispatcher.New(
		sendsRepo,
		connectionsRepo,
		chSendsRepo,
		tokens,
		provider,
		gate,
		cfg.Sender.DefaultName,
		log,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(agentsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:agent:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/email/send", sendEmailHandler(disp))
	v1.POST("/email/send-test", sendTestEmailHandler(disp))
	v1.POST("/email/send-template", sendTemplateHandler(templatesRepo, disp))
	v1.POST("/templates/render", renderTemplateHandler(templatesRepo))
	v1.GET("/templates", listTemplatesHandler(templatesRepo))
	v1.PUT("/templates/:name", upsertTemplateHandler(templatesRepo))
	v1.GET("/reports/sends", listSendsHandler(chSendsRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
