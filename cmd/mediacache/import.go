package main

import (
	"fmt"
	"os"

	"github.com/iburn/mediacache/internal/config"
	"github.com/iburn/mediacache/internal/models"
	"github.com/iburn/mediacache/internal/utils"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <catalog.json>",
	Short: "Load art objects from a JSON catalog into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := utils.NewLogger(cfg.LogLevel)

		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer file.Close()

		db, err := models.NewDatabase(cfg.DatabaseFile, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		count, err := db.ImportArt(file)
		if err != nil {
			return err
		}

		logger.WithField("count", count).Info("Catalog imported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
