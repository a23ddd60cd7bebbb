package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/leadcrm/leadgate/internal/config"
	"github.com/leadcrm/leadgate/internal/guard"
	"github.com/leadcrm/leadgate/internal/http/middleware"
	"github.com/leadcrm/leadgate/internal/metrics"
	"github.com/leadcrm/leadgate/internal/repository"
	"github.com/leadcrm/leadgate/internal/service/event"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	orgsRepo := repository.NewOrganizationsRepository(mysqlDB)
	subsRepo := repository.NewSubscriptionsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	chDeliveriesRepo := repository.NewCHDeliveriesRepository(clickhouseDB)

	// services
	emitter := event.New(mysqlDB, outboxRepo, cfg.Kafka.Topic)

	// guard state: in-memory per instance unless Redis is configured; a
	// scaled deployment needs the shared store or each instance counts alone
	var blocks guard.BlockStore = guard.NewMemoryBlockStore()
	if rds != nil {
		blocks = guard.NewRedisBlockStore(rds, "guard:block:")
	}

	breakers := guard.NewBreakerRegistry(
		cfg.Guard.Breaker.FailThreshold,
		cfg.Guard.Breaker.Window,
		cfg.Guard.Breaker.RecoveryTimeout,
	)
	throttle := guard.NewThrottle(
		cfg.Guard.Throttle.MaxRequests,
		cfg.Guard.Throttle.Window,
		cfg.Guard.Throttle.BlockFor,
		blocks,
	)
	anomaly := guard.NewAnomalyDetector(guard.AnomalyOpts{
		Window:             cfg.Guard.Anomaly.Window,
		MaxRequests:        cfg.Guard.Anomaly.MaxRequests,
		RapidFireThreshold: cfg.Guard.Anomaly.RapidFireThreshold,
		StdDevThreshold:    cfg.Guard.Anomaly.StdDevThreshold,
		IntervalMin:        cfg.Guard.Anomaly.IntervalMin,
		IntervalMax:        cfg.Guard.Anomaly.IntervalMax,
		WarnLimit:          cfg.Guard.Anomaly.WarnLimit,
		BlockFor:           cfg.Guard.Anomaly.BlockFor,
	}, blocks)
	pipeline := guard.NewPipeline(throttle, anomaly, &guard.BreakerFilter{Registry: breakers})

	// evict window state of clients that stopped sending
	go func() {
		tick := time.NewTicker(time.Minute)
		defer tick.Stop()
		for now := range tick.C {
			throttle.Sweep(now)
			anomaly.Sweep(now)
		}
	}()

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(orgsRepo)
	guardMW := middleware.GuardMiddleware(middleware.GuardConfig{
		Pipeline: pipeline,
		Breakers: breakers,
	})

	// routes
	v1 := e.Group("/v1", authMW, guardMW)
	v1.POST("/events", emitEventHandler(emitter))
	v1.GET("/subscriptions", listSubscriptionsHandler(subsRepo))
	v1.GET("/deliveries", listDeliveriesHandler(chDeliveriesRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
