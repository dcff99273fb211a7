package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ember/internal/config"
	"ember/internal/engine"
	"ember/internal/net"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional, env EMBER_* always applies)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	metrics := engine.NewMetrics()
	eng := engine.New(
		cfg.Engine.Symbols,
		engine.WithQueueDepth(cfg.Engine.CommandQueueDepth),
		engine.WithMetrics(metrics),
	)
	srv := net.New(cfg.Listen.Address, cfg.Listen.Port, eng)

	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("engine stopped unexpectedly")
		}
	}()

	metricsSrv := &http.Server{
		Addr:    ":9102",
		Handler: promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	go func() {
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("gateway stopped unexpectedly")
		}
	}()

	log.Info().Strs("symbols", cfg.Engine.Symbols).Msg("ember running")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	srv.Shutdown()
}
