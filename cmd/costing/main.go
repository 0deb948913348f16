package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/api"
	"github.com/promdetal/costing/internal/config"
	"github.com/promdetal/costing/internal/domain/audit"
	"github.com/promdetal/costing/internal/domain/batch"
	"github.com/promdetal/costing/internal/domain/material"
	"github.com/promdetal/costing/internal/domain/part"
	"github.com/promdetal/costing/internal/domain/workcenter"
	"github.com/promdetal/costing/internal/infra/db"
	httpx "github.com/promdetal/costing/internal/infra/http"
	"github.com/promdetal/costing/internal/infra/logger"
	"github.com/promdetal/costing/internal/infra/metrics"
	"github.com/promdetal/costing/internal/refcache"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	m := metrics.NewRegistry()
	cache := refcache.New(m)

	workCenters := workcenter.NewRepo(pool, cache)
	materials := material.NewRepo(pool, cache)
	cache.Bind(workCenters, materials)

	parts := part.NewRepo(pool)
	batches := batch.NewRepo(pool)
	auditLog := audit.NewRepo(pool)

	svc := batch.NewService(log, batches, parts, cache, m)

	defaults := api.Defaults{
		OverheadCoeff: decimal.NewFromFloat(cfg.Costing.OverheadCoeff),
		MarginCoeff:   decimal.NewFromFloat(cfg.Costing.MarginCoeff),
		WasteCoeff:    decimal.NewFromFloat(cfg.Costing.WasteCoeff),
	}
	h := api.New(log, svc, workCenters, materials, parts, auditLog, cache, defaults, cfg.App.Currency)

	var metricsHandler = m.Handler()
	if !cfg.Metrics.Enabled {
		metricsHandler = nil
	}
	srv := httpx.New(cfg.HTTP.Addr, h.Routes(), metricsHandler)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	waitForShutdown(ctx, srv, log)
}

func waitForShutdown(ctx context.Context, srv *httpx.Server, log *slog.Logger) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
