package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/logger"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "sift",
		Short:         "Sift: search result cache and per-user search history",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "sift.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(),
		newCacheCmd(),
		newHistoryCmd(),
		newStatsCmd(),
		newMCPCmd(),
		newTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and initializes logging from it. The
// default path may be absent, in which case built-in defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}
