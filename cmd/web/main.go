package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"heritage-atlas/internal/client"
	"heritage-atlas/internal/config"
	"heritage-atlas/internal/logger"
	"heritage-atlas/internal/verify"
	"heritage-atlas/internal/web"

	"go.uber.org/zap"
)

func gracefulShutdown(srv *http.Server, sessions *web.SessionStore, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	sessions.Close()
	logger.Info("Server exiting")

	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, "verify-web")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Heritage Atlas web",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Web.Port),
		zap.String("api", cfg.API.BaseURL),
	)

	api := client.New(cfg.API, log)

	sessions := web.NewSessionStore(cfg.Web.SessionTTL, func() *verify.Page {
		return verify.NewPage(api, log)
	}, log)

	handler, err := web.NewHandler(api, sessions, web.Options{
		PublicBaseURL:       cfg.Web.PublicBaseURL,
		PlaceholderImageURL: cfg.Web.PlaceholderImageURL,
		TrustedProxies:      cfg.Server.TrustedProxies,
	}, log)
	if err != nil {
		log.Fatal("Failed to build web handler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Web.Port),
		Handler:      handler.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second,
	}

	done := make(chan bool, 1)
	go gracefulShutdown(srv, sessions, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
