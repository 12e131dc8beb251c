// Package vault is the bundled capability provider: a vault of markdown
// documents with editor workspace state and a command table, backed by an
// in-memory or on-disk store.
package vault

import (
	"context"
	"strings"
	"time"
)

// Entry describes one stored file or folder.
type Entry struct {
	Path     string
	IsFolder bool
	Size     int
	Modified time.Time
}

// Store is the raw storage behind a Vault. Paths are clean, slash separated
// and relative to the vault root. Missing paths report host.ErrNotFound.
type Store interface {
	Stat(p string) (Entry, error)
	Read(p string) ([]byte, error)
	// Write creates parent folders as needed.
	Write(p string, data []byte) error
	Mkdir(p string) error
	// Remove deletes a file or a folder with everything under it.
	Remove(p string) error
	Rename(from, to string) error
	// Walk lists every file and folder, sorted by path.
	Walk() ([]Entry, error)
}

// ChangeFeed is implemented by stores whose content can change underneath the
// vault. Watch blocks until ctx is done, reporting changed paths.
type ChangeFeed interface {
	Watch(ctx context.Context, onChange func(p string), onError func(error)) error
}

func hidden(p string) bool {
	for _, segment := range strings.Split(p, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func under(p, dir string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
