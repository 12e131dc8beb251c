package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slighter12/vault-mcp-go/config"
	"github.com/slighter12/vault-mcp-go/logger"
	"github.com/slighter12/vault-mcp-go/tools"
)

// NewToolsCmd creates the "tools" subcommand and its enable/disable children.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show which tools are enabled",
		Args:  cobra.NoArgs,
		RunE:  runToolsList,
	}
	cmd.AddCommand(newToolToggleCmd("enable", true))
	cmd.AddCommand(newToolToggleCmd("disable", false))
	return cmd
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tSTATUS\tDESCRIPTION")
	for _, def := range tools.All() {
		status := "enabled"
		if !cfg.ToolEnabled(def.Name) {
			status = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, status, def.Description)
	}
	return w.Flush()
}

func newToolToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <tool>...",
		Short: fmt.Sprintf("%s tools in the config file", verb),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			known := make(map[string]bool)
			for _, name := range tools.Names() {
				known[name] = true
			}
			for _, name := range args {
				if !known[name] {
					return fmt.Errorf("unknown tool %q", name)
				}
				cfg.Tools[name] = enabled
				logger.Info("Tool status changed", "tool", name, "enabled", enabled)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %d tool(s) in %s\n", verb, len(args), path)
			return nil
		},
	}
}
