package types

import (
	"strings"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
)

// FilePath reads a required vault-relative path argument.
func FilePath(args schema.Args, field string) (string, error) {
	clean, err := host.CleanFilePath(args.String(field))
	if err != nil {
		return "", &ToolError{Kind: KindInvalidPath, Message: err.Error(), Data: map[string]any{"field": field}, Err: err}
	}
	return clean, nil
}

// FolderPath reads an optional folder argument; empty means the vault root.
func FolderPath(args schema.Args, field string) (string, error) {
	clean, err := host.CleanPath(args.String(field))
	if err != nil {
		return "", &ToolError{Kind: KindInvalidPath, Message: err.Error(), Data: map[string]any{"field": field}, Err: err}
	}
	return clean, nil
}

// MarkdownPath reads a document path, appending ".md" when no extension is
// given.
func MarkdownPath(args schema.Args, field string) (string, error) {
	clean, err := FilePath(args, field)
	if err != nil {
		return "", err
	}
	base := clean[strings.LastIndex(clean, "/")+1:]
	if !strings.Contains(base, ".") {
		clean += ".md"
	}
	return clean, nil
}
