package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pptxd/pkg/config"
	"pptxd/pkg/telemetry"
	"pptxd/services/api"
	"pptxd/services/builder"
	"pptxd/services/sweeper"
)

const serviceName = "pptxd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zerolog.TimeFieldFormat = time.RFC3339
	bootLog := telemetry.NewLogger(serviceName, os.Getenv("LOG_FORMAT"), os.Stderr)

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}
	logger := telemetry.NewLogger(serviceName, cfg.LogFormat, os.Stderr)

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	rt, err := builder.Open(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("open runtime")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error().Err(err).Msg("close runtime")
		}
	}()

	handlers, err := api.New(api.Deps{
		Builder: rt.Builder,
		Store:   rt.Store,
		Metrics: rt.Metrics,
		Ready:   rt.Ready,
		Logger:  logger,
	}, api.Config{
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.BuildRateLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init api")
	}

	go sweeper.New(rt.Store, cfg.SweepInterval, rt.Metrics, logger.With().Str("component", "sweeper").Logger()).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlers.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("backend", rt.Store.Backend()).Msg("starting pptxd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
