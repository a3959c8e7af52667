package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/config"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/metrics"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/modules/delivery"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/modules/orders"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/modules/webhook"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/tasks"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/uber"
	"github.com/Excel-Technologies-Ltd/uber-direct/pkg/notify"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse Redis URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	metrics.Register()

	// Provider side.
	tokens := uber.NewTokenProvider(
		cfg.UberOAuthURL, cfg.UberClientID, cfg.UberClientSecret,
		uber.NewRedisTokenCache(rdb), logger)
	client := uber.NewClient(cfg.UberAPIURL, cfg.UberCustomerID, tokens)

	// Local side.
	orderRepo := orders.NewRepository(pool)
	recordRepo := delivery.NewRecordRepository(pool)
	locationRepo := delivery.NewLocationRepository(pool)
	queue := tasks.NewRedisQueue(rdb)

	deliverySvc := delivery.NewService(client, recordRepo, locationRepo, orderRepo, queue, logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.OpsNotifyTo != "" && cfg.OpsNotifyFrom != "" {
		if ses, err := notify.NewSESNotifier(ctx, cfg.OpsNotifyFrom, cfg.OpsNotifyTo); err != nil {
			logger.Warn("SES notifier unavailable, falling back to log", zap.Error(err))
		} else {
			notifier = ses
		}
	}
	reconciler := webhook.NewReconciler(recordRepo, orderRepo, notifier, logger)

	// Background worker: webhook reconciliation and delivery creation both
	// run off the queue so HTTP handlers return immediately.
	worker := tasks.NewWorker(queue, logger)
	worker.Handle(tasks.JobWebhookEvent, reconciler.Apply)
	worker.Handle(tasks.JobCreateDelivery, func(ctx context.Context, payload json.RawMessage) error {
		var p tasks.CreateDeliveryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := deliverySvc.CreateDeliveryForOrder(ctx, p.OrderID)
		return err
	})
	worker.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	jwtGate := echojwt.WithConfig(echojwt.Config{SigningKey: []byte(cfg.JWTSecret)})

	deliveryHandler := delivery.NewHandler(deliverySvc)
	deliveryHandler.RegisterRoutes(e.Group("/api/v1/deliveries", jwtGate))
	deliveryHandler.RegisterHooks(e.Group("/hooks", jwtGate))

	webhookHandler := webhook.NewHandler(cfg, queue, logger)
	webhookHandler.RegisterRoutes(e.Group("/webhooks/uber"))

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	worker.Stop()
	logger.Info("server stopped")
}
