package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slighter12/vault-mcp-go/config"
)

// NewInitCmd creates the "init" subcommand.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	cmd.Flags().String("vault", "", "Vault root to record in the new config")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg := config.NewConfig()
	if root, _ := cmd.Flags().GetString("vault"); root != "" {
		cfg.Vault.Root = root
	}
	if err := config.SaveConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
