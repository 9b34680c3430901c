package main

import (
	"bitwise74/cardio-api/app"
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/internal/bootstrap"
	"bitwise74/cardio-api/internal/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.StringP("config", "c", "", "path to the config file (default ./config.toml)")
	flag.Parse()

	cfg, err := config.Setup(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.Setup(cfg.App.LogLevel, cfg.App.DevMode())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if !cfg.App.DevMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to start", zap.Error(err))
	}
	defer a.Close()

	if a.Queue != nil {
		if err := a.Queue.Start(); err != nil {
			zap.L().Fatal("Failed to start notification worker", zap.Error(err))
		}
	}

	if err := a.Cleanup.Start(ctx); err != nil {
		zap.L().Fatal("Failed to schedule cleanup", zap.Error(err))
	}
	defer a.Cleanup.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Host.Port),
		Handler:           app.NewRouter(ctx, a.Deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Server starting",
			zap.Int("port", cfg.Host.Port),
			zap.Bool("ssl", cfg.Host.SSL.Enabled),
			zap.String("version", bootstrap.Version),
		)

		var err error
		if cfg.Host.SSL.Enabled {
			err = srv.ListenAndServeTLS(cfg.Host.SSL.CertificatePath, cfg.Host.SSL.CertificateKeyPath)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
	}
}
