package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/systemshift/polkg/internal/config"
	"github.com/systemshift/polkg/internal/logger"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "polkg",
	Short: "Build a political knowledge graph from text",
	Long: `polkg extracts people, parties and countries from text with an LLM
and merges them into a graph database (Neo4j or SQLite).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./polkg.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(buildCmd, nodesCmd, relationshipsCmd, serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.L().Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads and validates configuration and installs the process logger.
// withLLM controls whether the llm section must be valid.
func setup(withLLM bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(withLLM); err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger.SetLogger(log)
	return cfg, nil
}
