package types

import (
	"context"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/mcp"
	"github.com/slighter12/vault-mcp-go/schema"
)

// Handler executes one validated tool call against the capability provider.
type Handler func(ctx context.Context, args schema.Args, provider host.Provider) (any, error)

// Definition is a registered tool. Definitions are values and are never
// mutated after registration.
type Definition struct {
	Name        string
	Description string
	Schema      schema.Schema
	Handler     Handler
}

// Advertised renders the definition as listed by tools/list.
func (d Definition) Advertised() mcp.Tool {
	return mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: d.Schema.InputSchema(),
	}
}
