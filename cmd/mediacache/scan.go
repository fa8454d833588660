package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/iburn/mediacache/internal/config"
	"github.com/iburn/mediacache/internal/grant"
	"github.com/iburn/mediacache/internal/media"
	"github.com/iburn/mediacache/internal/models"
	"github.com/iburn/mediacache/internal/utils"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Print the media each downloader would fetch, without downloading",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := utils.NewLogger(cfg.LogLevel)
		logger.SetOutput(os.Stderr)

		db, err := models.NewDatabase(cfg.DatabaseFile, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		db.AttachMediaRoot(cfg.DocumentsDir)

		<-db.RegisterView(cfg.ArtViewName, models.ArtByNameView())

		// No hub and no journal: nothing is issued or resumed
		grantor := grant.NewProcessGrantor(time.Minute, logger)
		out := cmd.OutOrStdout()
		for _, name := range cfg.MediaKinds {
			kind, err := models.ParseMediaKind(name)
			if err != nil {
				return err
			}
			d, err := media.NewDownloader(downloaderOptions(cfg, db, nil, grantor, kind), logger)
			if err != nil {
				return fmt.Errorf("failed to initialize %s downloader: %w", name, err)
			}
			pending, err := d.Scan(context.Background())
			d.Close()
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s: %d pending\n", kind, len(pending))
			for _, asset := range pending {
				fmt.Fprintf(out, "  %s\t%s\n", media.FileName(asset.Record, kind), asset.RemoteURL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
