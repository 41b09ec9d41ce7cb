package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dispatch/cmd"
	httpadapter "dispatch/internal/adapters/in/http"
	"dispatch/internal/adapters/out/postgres"
	"dispatch/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := cmd.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB := mustOpenDatabase(config)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err = redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis is not reachable, driver roster calls will fail until it is", "addr", config.RedisAddr, "error", err)
	}
	cancel()

	m := metrics.New(metrics.DefaultConfig())
	app, err := cmd.NewCompositionRoot(config, gormDB, redisClient, m, logger)
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	jobManager := app.CreateJobManager()
	if config.JobsEnabled {
		if err = jobManager.StartAll(); err != nil {
			log.Fatalf("failed to start jobs: %v", err)
		}
	}

	e := newEcho(ctx, app, m, logger)
	go func() {
		if startErr := e.Start(fmt.Sprintf("0.0.0.0:%s", config.HTTPPort)); startErr != nil &&
			!errors.Is(startErr, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", startErr)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err = e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if config.JobsEnabled {
		jobManager.StopAll()
	}
	if err = app.Close(shutdownCtx); err != nil {
		logger.Error("notifier shutdown", "error", err)
	}
	if err = redisClient.Close(); err != nil {
		logger.Error("redis shutdown", "error", err)
	}
	if sqlDB, dbErr := gormDB.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
}

func mustOpenDatabase(config cmd.Config) *gorm.DB {
	gormDB, err := gorm.Open(pgdriver.Open(config.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err = postgres.Migrate(gormDB); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}
	return gormDB
}

func newEcho(ctx context.Context, app *cmd.CompositionRoot, m *metrics.Metrics, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	createOrder := app.CreateCreateOrderCommandHandler()
	approveOrder := app.CreateApproveOrderCommandHandler()
	assignOrder := app.CreateAssignOrderCommandHandler()
	markDelivered := app.CreateMarkOrderDeliveredCommandHandler()
	cancelOrder := app.CreateCancelOrderCommandHandler()
	transition := app.CreateTransitionBatchCommandHandler()
	consolidation := app.CreateRunConsolidationCommandHandler()
	sweep := app.CreateSweepUnassignedCommandHandler()
	reresolve := app.CreateReresolveZonesCommandHandler()
	registerDrivers := app.CreateRegisterDriversCommandHandler()
	saveProduct := app.CreateSaveProductCommandHandler()
	getBatch := app.CreateGetBatchQueryHandler()
	listBatches := app.CreateListBatchesQueryHandler()

	server := httpadapter.NewServer(httpadapter.Handlers{
		CreateOrder:        &createOrder,
		ApproveOrder:       &approveOrder,
		AssignOrder:        &assignOrder,
		MarkOrderDelivered: &markDelivered,
		CancelOrder:        &cancelOrder,
		TransitionBatch:    &transition,
		RunConsolidation:   &consolidation,
		SweepUnassigned:    &sweep,
		ReresolveZones:     &reresolve,
		RegisterDrivers:    &registerDrivers,
		SaveProduct:        &saveProduct,
		GetBatch:           getBatch,
		ListBatches:        listBatches,
	}, logger)

	doc, err := httpadapter.LoadSpec(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err = server.Register(e, doc, m); err != nil {
		log.Fatalf("failed to register routes: %v", err)
	}
	return e
}
