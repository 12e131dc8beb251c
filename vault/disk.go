package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/logger"
)

// DiskStore keeps the vault in a directory on disk.
type DiskStore struct {
	root string
}

// NewDiskStore opens the vault rooted at dir, which must exist.
func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}
	return &DiskStore{root: abs}, nil
}

// Root returns the absolute vault directory.
func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) resolve(p string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(p))
	if !isWithinRoot(full, s.root) {
		return "", fmt.Errorf("%w: path escapes vault root: %s", host.ErrInvalidPath, p)
	}
	// Follow symlinks on the existing part of the path so links cannot point
	// outside the vault.
	existing := full
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	if resolved, err := filepath.EvalSymlinks(existing); err == nil && !isWithinRoot(resolved, s.root) {
		return "", fmt.Errorf("%w: path escapes vault root: %s", host.ErrInvalidPath, p)
	}
	return full, nil
}

func (s *DiskStore) rel(full string) string {
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func mapFSError(err error, p string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", host.ErrNotFound, p)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", host.ErrExists, p)
	}
	return err
}

func (s *DiskStore) Stat(p string) (Entry, error) {
	full, err := s.resolve(p)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return Entry{}, mapFSError(err, p)
	}
	return entryFromInfo(p, info), nil
}

func entryFromInfo(p string, info fs.FileInfo) Entry {
	entry := Entry{Path: p, IsFolder: info.IsDir(), Modified: info.ModTime()}
	if !info.IsDir() {
		entry.Size = int(info.Size())
	}
	return entry
}

func (s *DiskStore) Read(p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, mapFSError(err, p)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", host.ErrIsFolder, p)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, mapFSError(err, p)
	}
	return data, nil
}

func (s *DiskStore) Write(p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s", host.ErrIsFolder, p)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return mapFSError(err, p)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return mapFSError(err, p)
	}
	return nil
}

func (s *DiskStore) Mkdir(p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return mapFSError(err, p)
	}
	return nil
}

func (s *DiskStore) Remove(p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(full); err != nil {
		return mapFSError(err, p)
	}
	if err := os.RemoveAll(full); err != nil {
		return mapFSError(err, p)
	}
	return nil
}

func (s *DiskStore) Rename(from, to string) error {
	src, err := s.resolve(from)
	if err != nil {
		return err
	}
	dst, err := s.resolve(to)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", host.ErrExists, to)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return mapFSError(err, to)
	}
	if err := os.Rename(src, dst); err != nil {
		return mapFSError(err, from)
	}
	return nil
}

func (s *DiskStore) Walk() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := s.rel(full)
		if rel == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entryFromInfo(rel, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk vault: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Watch reports vault-relative paths changed by other processes. Folders
// created while watching are added to the watch set.
func (s *DiskStore) Watch(ctx context.Context, onChange func(p string), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create vault watcher: %w", err)
	}
	defer watcher.Close()

	addTree := func(dir string) {
		_ = filepath.WalkDir(dir, func(full string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if full != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := watcher.Add(full); err != nil && onError != nil {
				onError(fmt.Errorf("watch %s: %w", full, err))
			}
			return nil
		})
	}
	addTree(s.root)
	logger.Debug("Vault watcher started", "root", s.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel := s.rel(event.Name)
			if rel == "" || hidden(rel) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addTree(event.Name)
				}
			}
			onChange(rel)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

func isWithinRoot(p, root string) bool {
	cleanPath := filepath.Clean(p)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return true
	}
	return strings.HasPrefix(cleanPath, cleanRoot+string(filepath.Separator))
}
