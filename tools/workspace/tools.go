package workspace

import (
	"context"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
)

func Definitions() []tooltypes.Definition {
	return []tooltypes.Definition{
		GetActiveFile(),
		GetSelection(),
		InsertText(),
		ListOpenFiles(),
		OpenFile(),
	}
}

func GetActiveFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "get_active_file",
		Description: "Returns the file open in the active editor",
		Schema: schema.New("Get Active File",
			schema.Optional("includeContent", schema.Boolean, "Include the file content").WithDefault(false),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			file, err := p.ActiveFile(ctx)
			if err != nil {
				return nil, err
			}
			result := map[string]any{
				"active": true,
				"path":   file.Path,
				"name":   file.Name,
			}
			if args.Bool("includeContent") {
				result["content"] = file.Content
			}
			return result, nil
		},
	}
}

func GetSelection() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "get_selection",
		Description: "Returns the text selected in the active editor",
		Schema:      schema.New("Get Selection"),
		Handler: func(ctx context.Context, _ schema.Args, p host.Provider) (any, error) {
			return p.Selection(ctx)
		},
	}
}

func InsertText() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "insert_text",
		Description: "Inserts text at the cursor, replacing any selection, or at a given position",
		Schema: schema.New("Insert Text",
			schema.Required("text", schema.String, "Text to insert"),
			schema.Optional("line", schema.Integer, "1-based line to insert at instead of the cursor"),
			schema.Optional("ch", schema.Integer, "0-based column, used with line").WithDefault(0),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			var at *host.Position
			if line := args.IntPtr("line"); line != nil {
				at = &host.Position{Line: *line - 1, Ch: args.Int("ch")}
			}
			cursor, err := p.InsertText(ctx, args.String("text"), at)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "cursor": cursor}, nil
		},
	}
}

func ListOpenFiles() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "list_open_files",
		Description: "Lists files open in editor tabs",
		Schema:      schema.New("List Open Files"),
		Handler: func(ctx context.Context, _ schema.Args, p host.Provider) (any, error) {
			files, err := p.OpenFiles(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"files": files, "count": len(files)}, nil
		},
	}
}

func OpenFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "open_file",
		Description: "Opens a file in the editor, optionally at a line or in a new tab",
		Schema: schema.New("Open File",
			schema.Required("path", schema.String, "Vault-relative file path; .md is assumed without an extension"),
			schema.Optional("line", schema.Integer, "1-based line to place the cursor on"),
			schema.Optional("newLeaf", schema.Boolean, "Open in a new tab").WithDefault(false),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.MarkdownPath(args, "path")
			if err != nil {
				return nil, err
			}
			opts := host.OpenOptions{Line: args.IntPtr("line"), NewLeaf: args.Bool("newLeaf")}
			if err := p.OpenFile(ctx, path, opts); err != nil {
				return nil, err
			}
			result := map[string]any{"success": true, "path": path, "newLeaf": opts.NewLeaf}
			if opts.Line != nil {
				result["line"] = *opts.Line
			}
			return result, nil
		},
	}
}
