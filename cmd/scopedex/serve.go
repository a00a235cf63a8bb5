package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/scopedex/internal/logger"
	"github.com/kailas-cloud/scopedex/internal/metrics"
	chiTransport "github.com/kailas-cloud/scopedex/internal/transport/chi"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if a.cfg.Sync.EnsureIndexes {
		if err := a.indexer.EnsureIndexes(logpkg.ContextWithLogger(ctx, logger)); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}

	server := chiTransport.NewServer(a.catalog, a.listing, a.indexer, a.scopes, a.health)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(a.cfg.Auth.Tokens, a.cfg.Auth.DefaultSubject))
	r.Use(metrics.Middleware(a.catalog.Names()))
	server.Routes(r)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
