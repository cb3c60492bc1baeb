package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verity-ml/predict-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "predict-cli",
	Short: "Tabular document prediction pipeline",
	Long:  "Ingests CSV/XLSX documents, scores each row against a machine learning deployment, and tracks agreement, confidence, and reviewer corrections.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
