package document

import (
	"context"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
)

func Definitions() []tooltypes.Definition {
	return []tooltypes.Definition{
		ReadFile(),
		WriteFile(),
		ListFiles(),
		CreateFile(),
		CreateFolder(),
		DeleteFile(),
		EditLines(),
	}
}

func ReadFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "read_file",
		Description: "Reads the full content of a file in the vault",
		Schema: schema.New("Read File",
			schema.Required("path", schema.String, "Vault-relative file path"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			file, err := p.ReadFile(ctx, path)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"path":    file.Path,
				"content": file.Content,
				"size":    file.Size,
			}, nil
		},
	}
}

func WriteFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "write_file",
		Description: "Writes content to a file, creating or overwriting it",
		Schema: schema.New("Write File",
			schema.Required("path", schema.String, "Vault-relative file path"),
			schema.Required("content", schema.String, "New file content"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			file, err := p.WriteFile(ctx, path, args.String("content"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "path": file.Path, "size": file.Size}, nil
		},
	}
}

func ListFiles() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "list_files",
		Description: "Lists files and folders under a vault folder",
		Schema: schema.New("List Files",
			schema.Optional("path", schema.String, "Folder to list; the vault root when omitted").WithDefault(""),
			schema.Optional("recursive", schema.Boolean, "Include nested folders").WithDefault(false),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			dir, err := tooltypes.FolderPath(args, "path")
			if err != nil {
				return nil, err
			}
			entries, err := p.ListFiles(ctx, dir, args.Bool("recursive"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": dir, "files": entries, "count": len(entries)}, nil
		},
	}
}

func CreateFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "create_file",
		Description: "Creates a new file; fails if it already exists",
		Schema: schema.New("Create File",
			schema.Required("path", schema.String, "Vault-relative file path"),
			schema.Optional("content", schema.String, "Initial content").WithDefault(""),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			file, err := p.CreateFile(ctx, path, args.String("content"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "path": file.Path}, nil
		},
	}
}

func CreateFolder() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "create_folder",
		Description: "Creates a folder, including missing parents",
		Schema: schema.New("Create Folder",
			schema.Required("path", schema.String, "Vault-relative folder path"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			entry, err := p.CreateFolder(ctx, path)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "path": entry.Path}, nil
		},
	}
}

func DeleteFile() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "delete_file",
		Description: "Deletes a file or a folder with its contents",
		Schema: schema.New("Delete File",
			schema.Required("path", schema.String, "Vault-relative path"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			if err := p.Delete(ctx, path); err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "path": path}, nil
		},
	}
}

func EditLines() tooltypes.Definition {
	return tooltypes.Definition{
		Name:        "edit_lines",
		Description: "Replaces an inclusive 1-based line range of a file",
		Schema: schema.New("Edit Lines",
			schema.Required("path", schema.String, "Vault-relative file path"),
			schema.Required("startLine", schema.Integer, "First line to replace (1-based)"),
			schema.Required("endLine", schema.Integer, "Last line to replace (inclusive)"),
			schema.Required("content", schema.String, "Replacement text; may span several lines"),
		),
		Handler: func(ctx context.Context, args schema.Args, p host.Provider) (any, error) {
			path, err := tooltypes.FilePath(args, "path")
			if err != nil {
				return nil, err
			}
			start, end := args.Int("startLine"), args.Int("endLine")
			file, err := p.EditLines(ctx, path, start, end, args.String("content"))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"success":   true,
				"path":      file.Path,
				"startLine": start,
				"endLine":   end,
				"size":      file.Size,
			}, nil
		},
	}
}
