package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auto_wordpress_post_publisher/config"
	"auto_wordpress_post_publisher/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "wpwiz",
	Short:         "Write WordPress posts from chained completions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")
	rootCmd.AddCommand(serveCmd, tokenCmd, postCmd)
}

// Execute is called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadRuntime reads the config and builds the logger every command uses.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
