package tools

import (
	"github.com/slighter12/vault-mcp-go/tools/command"
	"github.com/slighter12/vault-mcp-go/tools/document"
	"github.com/slighter12/vault-mcp-go/tools/metadata"
	"github.com/slighter12/vault-mcp-go/tools/types"
	"github.com/slighter12/vault-mcp-go/tools/vaultinfo"
	"github.com/slighter12/vault-mcp-go/tools/workspace"
)

// All returns the canonical catalog of every tool across categories.
func All() []types.Definition {
	var all []types.Definition
	all = append(all, document.Definitions()...)
	all = append(all, workspace.Definitions()...)
	all = append(all, metadata.Definitions()...)
	all = append(all, command.Definitions()...)
	all = append(all, vaultinfo.Definitions()...)
	return all
}

// Names lists the catalog's tool names in catalog order.
func Names() []string {
	all := All()
	names := make([]string, 0, len(all))
	for _, def := range all {
		names = append(names, def.Name)
	}
	return names
}
