package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/tendant/objectgate/pkg/objectgate/api"
	"github.com/tendant/objectgate/pkg/objectgate/config"
)

func main() {
	usage := flag.Bool("usage", false, "print the environment variables the server reads and exit")
	flag.Parse()
	if *usage {
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	level := parseLevel(cfg.LogLevel)
	logger := newLogger(cfg, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close connections", "err", err)
		}
	}()

	server := api.NewServer(rt.Service, api.Config{
		Logger:      logger,
		LogLevel:    level,
		LogJSON:     cfg.LogJSON,
		CORSOrigins: cfg.CORSOrigins,
		UploadChunk: cfg.ChunkSize,

		TrustSubjectHeader: cfg.TrustSubjectHeader,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Object gateway starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"buckets", cfg.Buckets,
			"storage", cfg.Storage.Type,
			"acl_store", cfg.ACL.Type,
			"events", cfg.Events.Type,
			"authorization", cfg.Authz.Enabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}
	logger.Info("Server exiting")
}

func newLogger(cfg *config.ServerConfig, level slog.Level) *slog.Logger {
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    cfg.Environment == "production",
	}))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
