// Package cli implements the vault-mcp command line.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/logger"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:          "vault-mcp",
		Short:        "MCP tool gateway for a markdown vault",
		SilenceUsage: true,
		Version:      version,
	}
	root.PersistentFlags().StringP("config", "c", "", "Config file path (default: $MCP_CONFIG_PATH, ./config/vault_mcp.json, ~/.vault-mcp/config/vault_mcp.json)")
	root.SetVersionTemplate(fmt.Sprintf("vault-mcp version %s\n", version))

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewStdioCmd())
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewInitCmd())
	return root
}

func configPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path = strings.TrimSpace(path); path != "" {
		return path, nil
	}
	return config.ResolveConfigPath()
}

// loadConfig reads the config file, writing the defaults first when it does
// not exist yet.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, "", err
	}
	if err := config.EnsureDefaultConfig(path); err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("load configuration: %w", err)
	}
	return cfg, path, nil
}

func initLogger(cfg *config.Config, stdio bool) error {
	level := logger.GetLevelFromString(cfg.Logging.Level)
	format := logger.Format(cfg.Logging.Format)
	if stdio {
		// stdout carries protocol frames, so stdio sessions log to file only.
		return logger.InitWithConsole(io.Discard, level, format, cfg.Logging.Path)
	}
	return logger.Init(level, format, cfg.Logging.Path)
}
