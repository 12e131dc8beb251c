// Package host declares the capability surface tool handlers call into. A
// host application (or the bundled vault implementation) supplies it.
package host

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrNoActiveFile    = errors.New("no active file")
	ErrNoActiveEditor  = errors.New("no active editor")
	ErrCommandNotFound = errors.New("command not found")
	ErrInvalidRange    = errors.New("invalid line range")
	ErrIsFolder        = errors.New("path is a folder")
	ErrNotFolder       = errors.New("path is not a folder")
	ErrInvalidPath     = errors.New("invalid path")
)

// Provider is the full capability surface.
type Provider interface {
	Documents
	Workspace
	MetadataIndex
	Commands
	Vault
}

// Documents reads and mutates vault content.
type Documents interface {
	ReadFile(ctx context.Context, path string) (File, error)
	WriteFile(ctx context.Context, path, content string) (File, error)
	ListFiles(ctx context.Context, dir string, recursive bool) ([]Entry, error)
	CreateFile(ctx context.Context, path, content string) (File, error)
	CreateFolder(ctx context.Context, path string) (Entry, error)
	Delete(ctx context.Context, path string) error
	// EditLines replaces the 1-based inclusive range [start, end] with content.
	EditLines(ctx context.Context, path string, start, end int, content string) (File, error)
}

// Workspace exposes editor state.
type Workspace interface {
	ActiveFile(ctx context.Context) (File, error)
	Selection(ctx context.Context) (Selection, error)
	InsertText(ctx context.Context, text string, at *Position) (Position, error)
	OpenFiles(ctx context.Context) ([]string, error)
	OpenFile(ctx context.Context, path string, opts OpenOptions) error
}

// MetadataIndex serves cached structural metadata.
type MetadataIndex interface {
	Metadata(ctx context.Context, path string) (Metadata, error)
	Links(ctx context.Context, path string) (LinkInfo, error)
}

// Commands lists and runs registered commands.
type Commands interface {
	ListCommands(ctx context.Context, filter string) ([]Command, error)
	ExecuteCommand(ctx context.Context, id string) error
}

// Vault covers vault-wide operations.
type Vault interface {
	Rename(ctx context.Context, from, to string) (RenameResult, error)
	Info(ctx context.Context) (VaultInfo, error)
}
