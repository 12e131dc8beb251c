package command

import (
	"context"
	"strings"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
)

func Definitions() []tooltypes.Definition {
	return []tooltypes.Definition{
		ListCommands(),
		ExecuteCommand(),
	}
}

func ListCommands() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "list_commands",
		Description: "Lists registered commands, optionally filtered by id or name",
		Schema: schema.New("List Commands",
			schema.Optional("filter", schema.String, "Case-insensitive substring to match").WithDefault(""),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			commands, err := p.ListCommands(ctx, args.String("filter"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"commands": commands, "count": len(commands)}, nil
		},
	}
}

func ExecuteCommand() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "execute_command",
		Description: "Executes a registered command by id",
		Schema: schema.New("Execute Command",
			schema.Required("commandId", schema.String, "Command id, e.g. editor:select-all"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			id := strings.TrimSpace(args.String("commandId"))
			if err := p.ExecuteCommand(ctx, id); err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "commandId": id}, nil
		},
	}
}
