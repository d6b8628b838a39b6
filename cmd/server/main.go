package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"fenrir/internal/boundary"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/metrics"
	fenrirNet "fenrir/internal/net"
)

func main() {
	configPath := pflag.String("config", "", "Path to a YAML config file (optional)")
	pflag.String("address", "0.0.0.0", "Address to listen on")
	pflag.Int("port", 9001, "Port to listen on")
	pflag.String("log_level", "info", "Log level: debug, info, warn, error")
	pflag.Parse()

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fenrir: failed to load config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "fenrir: invalid config:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	limits := engine.Limits{
		MaxTrades:       cfg.Engine.MaxTrades,
		MaxPreviewScans: cfg.Engine.MaxPreviewScans,
	}

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		collectors = metrics.New()
		reg := prometheus.NewRegistry()
		collectors.MustRegister(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port)
		go func() {
			log.Info().Str("address", metricsAddr).Msg("metrics listening")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	b := boundary.New(limits, boundary.NoopVaultClient{}, collectors)
	srv := fenrirNet.New(cfg.Address, cfg.Port, b)

	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	srv.Shutdown()
}
