package vaultinfo

import (
	"context"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
)

func Definitions() []tooltypes.Definition {
	return []tooltypes.Definition{
		RenameFile(),
		GetVaultInfo(),
	}
}

func RenameFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "rename_file",
		Description: "Renames or moves a file or folder and rewrites links that point to it",
		Schema: schema.New("Rename File",
			schema.Required("oldPath", schema.String, "Current vault-relative path"),
			schema.Required("newPath", schema.String, "New vault-relative path"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			from, err := tooltypes.FilePath(args, "oldPath")
			if err != nil {
				return nil, err
			}
			to, err := tooltypes.FilePath(args, "newPath")
			if err != nil {
				return nil, err
			}
			result, err := p.Rename(ctx, from, to)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":           true,
				"oldPath":           result.From,
				"newPath":           result.To,
				"updatedReferences": result.UpdatedReferences,
			}, nil
		},
	}
}

func GetVaultInfo() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "get_vault_info",
		Description: "Returns the vault name, document and file counts and config folder",
		Schema:      schema.New("Get Vault Info"),
		Handler: func(ctx context.Context, _ schema.Args, p host.Provider) (any, error) {
			return p.Info(ctx)
		},
	}
}
