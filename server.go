package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"task-api/api"
	"task-api/storage"
)

// newServer builds the echo instance with middleware, metrics and routes.
func newServer(store api.Storage, deduper api.Deduper, notifier api.Notifier, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = api.JSONSerializer{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.Recover())
	// No AllowHeaders: preflights get back whatever headers they ask for.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
	}))
	e.Use(middleware.Decompress())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "taskapi",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))

	api.Register(e, store, deduper, notifier, logger)
	return e
}

type dependencies struct {
	store    *storage.Store
	deduper  api.Deduper
	notifier api.Notifier
	closers  []func() error
}

func (d *dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openDependencies constructs the configured backend and optional Redis and
// queue integrations.
func openDependencies(ctx context.Context, cfg config, logger *log.Logger) (*dependencies, error) {
	deps := &dependencies{}

	var backend storage.Backend
	switch cfg.Backend {
	case backendBadger:
		b, err := storage.OpenBadger(storage.BadgerConfig{
			Path:       cfg.BadgerPath,
			SyncWrites: cfg.BadgerSync,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, b.Close)
		backend = b
	case backendTable:
		t, err := storage.NewTableBackend(cfg.StorageConnStr, cfg.TasksTable)
		if err != nil {
			return nil, fmt.Errorf("table backend: %w", err)
		}
		if err := t.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("ensure table %s: %w", cfg.TasksTable, err)
		}
		backend = t
	default:
		backend = storage.NewFileBackend(cfg.TasksFile)
	}

	if cfg.RedisConnStr != "" {
		rc := redis.NewClient(parseRedisOptions(cfg.RedisConnStr))
		deps.closers = append(deps.closers, rc.Close)
		backend = storage.NewCache(backend, rc, cfg.CacheTTL)
		deps.deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}

	if cfg.EventsQueue != "" {
		n, err := storage.NewQueueNotifier(cfg.StorageConnStr, cfg.EventsQueue)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("queue notifier: %w", err)
		}
		if err := n.EnsureQueue(ctx); err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("ensure queue %s: %w", cfg.EventsQueue, err)
		}
		deps.notifier = n
	}

	deps.store = storage.NewStore(backend, cfg.StrictLoad, logger)
	return deps, nil
}

func newLogger(cfg config) *log.Logger {
	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
		log.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
		log.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}
