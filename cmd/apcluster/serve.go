package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/affinity-clustering-service/backend/api"
	"github.com/gilchrisn/affinity-clustering-service/backend/config"
	"github.com/gilchrisn/affinity-clustering-service/backend/service"
)

func newServeCmd(a *app) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dataset upload and clustering jobs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zerolog.TimeFieldFormat = time.RFC3339
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			if a.logLevel != "" {
				level, err := zerolog.ParseLevel(a.logLevel)
				if err != nil {
					return err
				}
				zerolog.SetGlobalLevel(level)
			}

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides server.address)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("address", cfg.Server.Address).
		Int("max_workers", cfg.Jobs.MaxWorkers).
		Dur("job_timeout", cfg.Jobs.JobTimeout).
		Msg("Configuration loaded")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	datasetService := service.NewDatasetService()
	jobService := service.NewJobService(datasetService, service.NewMetrics(registry), service.JobOptions{
		MaxWorkers:      cfg.Jobs.MaxWorkers,
		Timeout:         cfg.Jobs.JobTimeout,
		ResultTTL:       cfg.Jobs.ResultTTL,
		CleanupInterval: cfg.Jobs.CleanupInterval,
		LogLevel:        cfg.Jobs.LogLevel,
	})
	defer jobService.Close()

	handlers := api.NewHandlers(datasetService, jobService, cfg.Storage.MaxUploadBytes)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewHandler(handlers, registry, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
