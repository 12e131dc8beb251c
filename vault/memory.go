package vault

import (
	"fmt"
	"maps"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/slighter12/vault-mcp-go/host"
)

type memFile struct {
	data     []byte
	modified time.Time
}

// MemoryStore keeps the vault in memory. Used for tests and demos.
type MemoryStore struct {
	mu      sync.RWMutex
	files   map[string]memFile
	folders map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:   make(map[string]memFile),
		folders: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seed writes every file in docs, creating folders as needed.
func (s *MemoryStore) Seed(docs map[string]string) *MemoryStore {
	for p, content := range docs {
		_ = s.Write(p, []byte(content))
	}
	return s
}

func (s *MemoryStore) Stat(p string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statLocked(p)
}

func (s *MemoryStore) statLocked(p string) (Entry, error) {
	if f, ok := s.files[p]; ok {
		return Entry{Path: p, Size: len(f.data), Modified: f.modified}, nil
	}
	if p == "" {
		return Entry{Path: "", IsFolder: true}, nil
	}
	if mod, ok := s.folders[p]; ok {
		return Entry{Path: p, IsFolder: true, Modified: mod}, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", host.ErrNotFound, p)
}

func (s *MemoryStore) Read(p string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	if !ok {
		if _, isFolder := s.folders[p]; isFolder {
			return nil, fmt.Errorf("%w: %s", host.ErrIsFolder, p)
		}
		return nil, fmt.Errorf("%w: %s", host.ErrNotFound, p)
	}
	return append([]byte(nil), f.data...), nil
}

func (s *MemoryStore) Write(p string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isFolder := s.folders[p]; isFolder {
		return fmt.Errorf("%w: %s", host.ErrIsFolder, p)
	}
	s.mkdirLocked(path.Dir(p))
	s.files[p] = memFile{data: append([]byte(nil), data...), modified: s.now()}
	return nil
}

func (s *MemoryStore) Mkdir(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, isFile := s.files[p]; isFile {
		return fmt.Errorf("%w: %s", host.ErrExists, p)
	}
	s.mkdirLocked(p)
	return nil
}

func (s *MemoryStore) mkdirLocked(p string) {
	for p != "." && p != "" {
		if _, ok := s.folders[p]; !ok {
			s.folders[p] = s.now()
		}
		p = path.Dir(p)
	}
}

func (s *MemoryStore) Remove(p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.statLocked(p); err != nil {
		return err
	}
	for fp := range s.files {
		if under(fp, p) {
			delete(s.files, fp)
		}
	}
	for dp := range s.folders {
		if under(dp, p) {
			delete(s.folders, dp)
		}
	}
	return nil
}

func (s *MemoryStore) Rename(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.statLocked(from); err != nil {
		return err
	}
	if _, err := s.statLocked(to); err == nil {
		return fmt.Errorf("%w: %s", host.ErrExists, to)
	}
	if under(to, from) {
		return fmt.Errorf("%w: cannot move %s into itself", host.ErrInvalidPath, from)
	}
	s.mkdirLocked(path.Dir(to))
	files := make(map[string]memFile)
	for fp, f := range s.files {
		if under(fp, from) {
			delete(s.files, fp)
			files[to+fp[len(from):]] = f
		}
	}
	folders := make(map[string]time.Time)
	for dp, mod := range s.folders {
		if under(dp, from) {
			delete(s.folders, dp)
			folders[to+dp[len(from):]] = mod
		}
	}
	maps.Copy(s.files, files)
	maps.Copy(s.folders, folders)
	return nil
}

func (s *MemoryStore) Walk() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.files)+len(s.folders))
	for p, f := range s.files {
		entries = append(entries, Entry{Path: p, Size: len(f.data), Modified: f.modified})
	}
	for p, mod := range s.folders {
		entries = append(entries, Entry{Path: p, IsFolder: true, Modified: mod})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
