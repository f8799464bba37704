package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alkholigroup2020/stock-management-system-sub008/internal/app"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/approvals"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/closing"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/locations"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/periods"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/cache"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/platform/db"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/reconciliation"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/shared"
	"github.com/alkholigroup2020/stock-management-system-sub008/internal/stock"
	"github.com/alkholigroup2020/stock-management-system-sub008/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	periodLocker := shared.NewPeriodLocker(redisClient, cfg.CloseLockTTL)

	locationsService := locations.NewService(locations.NewRepository(pool))
	periodsService := periods.NewService(logger, periods.NewRepository(pool), auditLogger)
	stockService := stock.NewService(logger, stock.NewRepository(pool), auditLogger, periodsService)
	reconciliationService := reconciliation.NewService(logger, reconciliation.NewRepository(pool), auditLogger)
	closeService := closing.NewService(logger, closing.NewRepository(pool), periodLocker, auditLogger, jobClient)

	approvalsService := approvals.NewService(approvals.NewRepository(pool))
	approvalsService.Register(approvals.EntityPeriodClose, closeService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		Pool:                  pool,
		LocationsHandler:      locations.NewHandler(logger, locationsService),
		StockHandler:          stock.NewHandler(logger, stockService),
		PeriodsHandler:        periods.NewHandler(logger, periodsService),
		ReconciliationHandler: reconciliation.NewHandler(logger, reconciliationService),
		ApprovalsHandler:      approvals.NewHandler(logger, approvalsService, closing.RespondError),
		CloseHandler:          closing.NewHandler(logger, closeService),
		JobsHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
