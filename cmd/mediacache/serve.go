package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iburn/mediacache/internal/api"
	"github.com/iburn/mediacache/internal/api/handlers"
	"github.com/iburn/mediacache/internal/config"
	"github.com/iburn/mediacache/internal/events"
	"github.com/iburn/mediacache/internal/grant"
	"github.com/iburn/mediacache/internal/media"
	"github.com/iburn/mediacache/internal/models"
	"github.com/iburn/mediacache/internal/scheduler"
	"github.com/iburn/mediacache/internal/transfer"
	"github.com/iburn/mediacache/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the media downloaders, rescan scheduler and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// downloaderOptions builds the options shared by every kind
func downloaderOptions(cfg *config.Config, db *models.Database, hub *events.Hub, grantor grant.Grantor, kind models.MediaKind) media.Options {
	return media.Options{
		Catalog:   db,
		Hub:       hub,
		ViewName:  cfg.ArtViewName,
		Kind:      kind,
		MediaRoot: cfg.DocumentsDir,
		Grantor:   grantor,
		Transfer: transfer.Config{
			TempDir:       cfg.TransferDir,
			MaxConcurrent: cfg.MaxConcurrentTransfers,
			Timeout:       time.Duration(cfg.TransferTimeoutSeconds) * time.Second,
			MaxRetries:    cfg.TransferMaxRetries,
		},
	}
}

func serve() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting mediacache")
	logger.WithFields(logrus.Fields{
		"config_dir":    filepath.Dir(cfg.DatabaseFile),
		"documents_dir": cfg.DocumentsDir,
	}).Info("Configuration loaded")

	// 3. Initialize database
	hub := events.NewHub()
	db, err := models.NewDatabase(cfg.DatabaseFile, hub)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	db.AttachMediaRoot(cfg.DocumentsDir)
	logger.Info("Database initialized")

	// 4. Initialize downloaders, one per media kind
	grantor := grant.NewProcessGrantor(time.Duration(cfg.GrantBudgetSeconds)*time.Second, logger)
	metrics := media.NewMetrics(prometheus.DefaultRegisterer)

	var downloaders []*media.Downloader
	defer func() {
		for _, d := range downloaders {
			d.Close()
		}
	}()
	for _, name := range cfg.MediaKinds {
		kind, err := models.ParseMediaKind(name)
		if err != nil {
			return err
		}
		opts := downloaderOptions(cfg, db, hub, grantor, kind)
		opts.Metrics = metrics
		opts.Transfer.Journal = db.TransferJournal()

		d, err := media.NewDownloader(opts, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize %s downloader: %w", name, err)
		}
		downloaders = append(downloaders, d)
		logger.WithField("session", d.Identifier()).Info("Media downloader initialized")
	}

	// 5. Register the view; its registration event triggers the first scan
	db.RegisterView(cfg.ArtViewName, models.ArtByNameView())

	// 6. Initialize scheduler
	rescanners := make([]scheduler.Rescanner, 0, len(downloaders))
	apiDownloaders := make([]handlers.Downloader, 0, len(downloaders))
	for _, d := range downloaders {
		rescanners = append(rescanners, d)
		apiDownloaders = append(apiDownloaders, d)
	}

	sched := scheduler.NewScheduler(cfg.RescanSchedule, rescanners, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg.ServerPort, apiDownloaders, prometheus.DefaultGatherer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("mediacache is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.WithField("active_grants", grantor.Active()).Info("mediacache stopped")
	return nil
}
