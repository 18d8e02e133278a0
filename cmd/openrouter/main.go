// openrouter: command-line client and gRPC gateway for the OpenRouter API.
//
// Settings come from an optional YAML file (--config), a .env file and the
// environment; see package config for the variables.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/abdhe/openrouter-go/pkg/config"
	"github.com/abdhe/openrouter-go/pkg/openrouter"
)

var configPath string

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:           "openrouter",
		Short:         "OpenRouter client and gRPC gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newModelsCmd(),
		newCreditsCmd(),
		newChatCmd(),
		newStreamCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates the settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newClient builds an API client from the loaded settings.
func newClient() (*openrouter.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openrouter.New(cfg.APIKey, cfg.ClientOptions()...), nil
}
