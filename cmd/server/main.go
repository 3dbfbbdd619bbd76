package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"minichat/internal/admin"
	"minichat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := server.DefaultConfig()

	addr := flag.String("addr", ":8888", "TCP address to listen on")
	flag.IntVar(&cfg.MaxClients, "max-clients", cfg.MaxClients, "maximum number of concurrent clients")
	flag.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "per-line read buffer in bytes; longer lines are truncated")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "deadline for each write to a client, 0 disables")
	flag.Var(&cfg.Policy, "broadcast", "broadcast policy: locked or snapshot")
	adminAddr := flag.String("admin", "", "HTTP status address (e.g. :8081), empty disables")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	logger, err := newLogger(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "minichat: %v\n", err)
		os.Exit(2)
	}
	cfg.Logger = logger

	srv, err := server.New(cfg)
	if err != nil {
		logger.Error("init server", "err", err)
		os.Exit(1)
	}

	var status *fiber.App
	if *adminAddr != "" {
		status = admin.New(srv, os.Stderr)
		go func() {
			logger.Info("admin listening", "addr", *adminAddr)
			if err := status.Listen(*adminAddr); err != nil {
				logger.Error("admin stopped", "err", err)
			}
		}()
	}

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe(*addr) }()

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-served:
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if status != nil {
		if err := status.Shutdown(); err != nil {
			logger.Warn("admin shutdown", "err", err)
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
	if err := <-served; err != nil && !errors.Is(err, server.ErrServerClosed) {
		logger.Warn("accept loop ended with error", "err", err)
	}
	logger.Info("bye")
}
