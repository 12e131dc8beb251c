package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/gateway"
	"github.com/slighter12/vault-mcp-go/logger"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and its HTTP transport",
		Long: "Run the gateway. The HTTP transport starts when startOnStartup is set or --start is given.\n" +
			"On Unix, SIGUSR1 starts, SIGUSR2 stops and SIGHUP restarts the transport.",
		RunE: runServe,
	}
	cmd.Flags().Bool("start", false, "Start the transport even when startOnStartup is false")
	cmd.Flags().String("port", "", "Override the configured port")
	cmd.Flags().String("vault", "", "Override the configured vault root")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if raw, _ := cmd.Flags().GetString("port"); raw != "" {
		port, err := config.ParsePort(raw)
		if err != nil {
			return err
		}
		cfg.Port = port
	}
	if root, _ := cmd.Flags().GetString("vault"); root != "" {
		cfg.Vault.Root = root
	}
	if start, _ := cmd.Flags().GetBool("start"); start {
		cfg.StartOnStartup = true
	}

	if err := initLogger(cfg, false); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Default().Close()
	logger.Info("Starting vault-mcp", "config", path, "address", cfg.Addr(), "vault", cfg.Vault.Root)

	app, err := gateway.New(gateway.Options{Config: cfg, ConfigPath: path})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}
