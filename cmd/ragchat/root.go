package main

import (
	"github.com/spf13/cobra"

	"ragchat/internal/config"
)

// Shared CLI flags
var (
	cfgFile  string
	logLevel string
	files    []string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Retrieval-augmented chat over your documents",
		Long: `ragchat answers questions about a document corpus. Each turn retrieves
matching passages, folds in a running summary of the conversation and asks
the configured model for an answer.

Run 'ragchat chat docs/*.txt' to open the terminal chat.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.config/ragchat/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(chatCmd())
	root.AddCommand(askCmd())
	root.AddCommand(promptsCmd())
	return root
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgFile == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgFile)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}
