package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensepro/internal/amqp"
	"expensepro/internal/cache"
	"expensepro/internal/cli"
	apphttp "expensepro/internal/http"
	"expensepro/internal/log"
	"expensepro/internal/services"
	"expensepro/internal/views"
	"expensepro/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	manager := cache.NewManager(logger)
	manager.StartCleanup(time.Minute)
	lists := services.NewListService(repo, manager, cfg.ListCacheSize, cfg.ListCacheTTL, logger)

	// AMQP is optional: without it each instance only invalidates its own
	// caches and relies on the TTL for writes made elsewhere.
	var (
		amqpClient *amqp.Client
		publisher  services.Publisher
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, cache invalidation stays local", log.FieldError, err)
		} else {
			amqpClient, publisher = c, c
			logger.Info("AMQP invalidation enabled", "exchange", cfg.AMQPExchange, log.FieldOrigin, c.Origin())
		}
	}

	expenses := services.NewExpenseService(repo, lists, publisher, views.Names(), logger)
	filters := services.NewFilterMemory(repo, cfg.FilterPersistDebounce, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Config:   cfg,
		Lists:    lists,
		Expenses: expenses,
		Filters:  filters,
		Storage:  repo,
		Logger:   logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		manager.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	if amqpClient != nil {
		w := worker.NewInvalidationWorker(amqpClient, lists, views.Names(), logger)
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("Invalidation consumer stopped", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting expensepro server",
		"port", cfg.Port,
		"history_mode", cfg.HistoryMode,
		"search_debounce", cfg.SearchDebounce.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
