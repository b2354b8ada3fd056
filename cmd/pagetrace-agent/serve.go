package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vincentbai/pagetrace/internal/analytics"
	"github.com/vincentbai/pagetrace/internal/database"
	"github.com/vincentbai/pagetrace/internal/logging"
	"github.com/vincentbai/pagetrace/internal/server"
	"github.com/vincentbai/pagetrace/internal/tab"
	"github.com/vincentbai/pagetrace/internal/telemetry"
	"github.com/vincentbai/pagetrace/internal/tracking"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept browser signals over HTTP and track every tab",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
	cmd.Flags().String("address", "", "listen address (default 127.0.0.1:8123)")
	cobra.CheckErr(a.v.BindPFlag("server.address", cmd.Flags().Lookup("address")))
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	logger := logging.FromContext(cmd.Context())
	db, err := openDatabase(a.cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := telemetry.Setup(cmd.Context(), "pagetrace-agent", version)
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	var mp analytics.Dispatcher
	if a.cfg.Analytics.APISecret != "" {
		mp = analytics.NewMeasurementProtocol(a.cfg.Measurement(), logger)
	} else {
		logger.Info().Msg("No analytics.api_secret set; calls are only recorded locally")
	}
	var logged analytics.Dispatcher
	if logger.GetLevel() <= zerolog.DebugLevel {
		logged = analytics.NewLogDispatcher(logger)
	}
	dispatcher := analytics.Multi(db, mp, logged)

	opts, err := a.cfg.TrackingOptions()
	if err != nil {
		return err
	}

	sched := tab.NewCronScheduler()
	defer func() { <-sched.Stop().Done() }()

	registry := tracking.NewRegistry(sched, func(tabID string) *analytics.Sink {
		return analytics.NewSink(dispatcher,
			analytics.WithMeasurementID(a.cfg.Analytics.MeasurementID),
			analytics.WithClientID(tabID),
			analytics.WithLogger(logger),
		)
	}, opts, logger)

	srv := server.NewServer(registry, db, a.cfg.Server.Address, logger)
	srv.UseTelemetry(metrics, provider)
	return srv.Start(cmd.Context())
}

func openDatabase(path string, logger zerolog.Logger) (*database.Database, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create application directory: %w", err)
	}
	return database.NewDatabase(path, logger)
}
