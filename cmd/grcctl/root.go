package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// clientConfig holds connection settings for the sync service, read from
// an optional config file and overridable by flags.
type clientConfig struct {
	Server  string        `yaml:"server"`
	Actor   string        `yaml:"actor"`
	Timeout time.Duration `yaml:"timeout"`
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		Server:  "http://localhost:8080",
		Timeout: 5 * time.Minute,
	}
}

// loadClientConfig reads the config file if it exists. Flags still win.
func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, ".grcctl.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		server     string
		actor      string
	)

	root := &cobra.Command{
		Use:           "grcctl",
		Short:         "Operator CLI for the GRC sync service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to client config (default: ~/.grcctl.yaml)")
	root.PersistentFlags().StringVar(&server, "server", "", "sync service base URL")
	root.PersistentFlags().StringVar(&actor, "actor", "", "acting user email")

	newClient := func() (*apiClient, error) {
		cfg, err := loadClientConfig(configPath)
		if err != nil {
			return nil, err
		}
		if server != "" {
			cfg.Server = server
		}
		if actor != "" {
			cfg.Actor = actor
		}
		return newAPIClient(cfg), nil
	}

	root.AddCommand(newReindexCmd(newClient))
	root.AddCommand(newIssuesCmd(newClient))
	return root
}
