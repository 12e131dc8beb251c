package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slighter12/vault-mcp-go/gateway"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/tools"
	"github.com/slighter12/vault-mcp-go/transport/stdio"
)

// NewStdioCmd creates the "stdio" subcommand.
func NewStdioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP over stdin/stdout",
		RunE:  runStdio,
	}
	cmd.Flags().String("vault", "", "Override the configured vault root")
	return cmd
}

func runStdio(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if root, _ := cmd.Flags().GetString("vault"); root != "" {
		cfg.Vault.Root = root
	}
	if err := initLogger(cfg, true); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Default().Close()

	app, err := gateway.New(gateway.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	snap, err := tools.BuildSnapshot(tools.All(), cfg.Tools)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Serving MCP over stdio", "tools", snap.Len())
	return stdio.NewServer(snap, app.Dispatcher()).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
