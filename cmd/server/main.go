package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cachemir/cachemir/internal/server"
	"github.com/cachemir/cachemir/pkg/cache"
	"github.com/cachemir/cachemir/pkg/config"
)

func main() {
	cfg := config.LoadServerConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	limit := cacheLimit(cfg.MaxRecords, cfg.MaxSizeMb)
	c := cache.New(limit, cache.WithLogger(logger), cache.WithPort(cfg.Port))

	srv := server.New(c, server.Options{
		Port:  cfg.Port,
		Delay: cfg.Delay,
		Fast:  cfg.Fast,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutting down")
		cancel()
		srv.Wait()
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server exited", zap.Error(err))
		}
	}
}

func cacheLimit(maxRecords, maxSizeMb int) cache.CacheLimit {
	switch {
	case maxRecords > 0 && maxSizeMb > 0:
		return cache.ByBoth(maxRecords, maxSizeMb)
	case maxRecords > 0:
		return cache.ByMaxRecords(maxRecords)
	case maxSizeMb > 0:
		return cache.ByMaxSizeMb(maxSizeMb)
	default:
		return cache.NoLimit()
	}
}
