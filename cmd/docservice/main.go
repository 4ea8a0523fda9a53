package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-herbal-inspector/internal/config"
	"go-herbal-inspector/internal/container"
	"go-herbal-inspector/internal/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadDocServiceFromEnv()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewDocContainer(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize document service")
	}
	defer c.Close()

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithField("address", cfg.ServerAddress()).Info("Starting document service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down document service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Document service exited")
}
