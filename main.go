package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := loadConfig(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Errorf("close dependencies: %v", err)
		}
	}()

	e := newServer(deps.store, deps.deduper, deps.notifier, logger)

	go func() {
		logger.WithFields(log.Fields{
			"addr":    cfg.listenAddr(),
			"backend": cfg.Backend,
			"strict":  cfg.StrictLoad,
			"cache":   cfg.RedisConnStr != "",
		}).Info("task api listening")
		if err := e.Start(cfg.listenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown failed: %v", err)
		return
	}
	logger.Info("shut down gracefully")
}
