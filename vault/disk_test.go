package vault

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/vault-mcp-go/host"
)

func TestDiskStoreOperations(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Write("notes/a.md", []byte("alpha")))
	data, err := store.Read("notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	entry, err := store.Stat("notes")
	require.NoError(t, err)
	assert.True(t, entry.IsFolder)

	_, err = store.Read("notes")
	assert.ErrorIs(t, err, host.ErrIsFolder)
	_, err = store.Read("missing.md")
	assert.ErrorIs(t, err, host.ErrNotFound)

	require.NoError(t, store.Rename("notes/a.md", "archive/a.md"))
	assert.ErrorIs(t, store.Rename("archive/a.md", "archive/a.md"), host.ErrExists)

	entries, err := store.Walk()
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"archive", "archive/a.md", "notes"}, paths)

	require.NoError(t, store.Remove("archive"))
	_, err = store.Stat("archive/a.md")
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestDiskStoreRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	err = store.Write("link/secret.md", []byte("x"))
	assert.ErrorIs(t, err, host.ErrInvalidPath)
}

func TestDiskVaultNameAndWatch(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyVault")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# One"), 0o644))

	store, err := NewDiskStore(root)
	require.NoError(t, err)

	var mu sync.Mutex
	changed := map[string]bool{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Watch(ctx, func(p string) {
			mu.Lock()
			changed[p] = true
			mu.Unlock()
		}, nil)
	}()

	v := New(store)
	info, err := v.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MyVault", info.Name)

	// Give the watcher time to register before writing behind its back.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# Two"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed["a.md"]
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
