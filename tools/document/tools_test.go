package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slighter12/vault-mcp-go/host"
	"github.com/slighter12/vault-mcp-go/schema"
	tooltypes "github.com/slighter12/vault-mcp-go/tools/types"
	"github.com/slighter12/vault-mcp-go/vault"
)

func newVault() *vault.Vault {
	return vault.New(vault.NewMemoryStore().Seed(map[string]string{
		"Index.md":         "# Index\nfirst\nsecond",
		"Projects/Beta.md": "beta",
	}))
}

func call(t *testing.T, def tooltypes.Definition, p host.Provider, raw map[string]any) (map[string]any, error) {
	t.Helper()
	args, err := schema.Validate(def.Schema, raw)
	require.NoError(t, err)
	out, err := def.Handler(context.Background(), args, p)
	if err != nil {
		return nil, err
	}
	result, ok := out.(map[string]any)
	require.True(t, ok, "unexpected result type %T", out)
	return result, nil
}

func TestReadAndWriteFile(t *testing.T) {
	v := newVault()

	out, err := call(t, ReadFile(), v, map[string]any{"path": "Index.md"})
	require.NoError(t, err)
	assert.Equal(t, "# Index\nfirst\nsecond", out["content"])

	out, err = call(t, WriteFile(), v, map[string]any{"path": "/Notes/new.md", "content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Notes/new.md", out["path"])

	out, err = call(t, ReadFile(), v, map[string]any{"path": "Notes/new.md"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["content"])

	_, err = call(t, ReadFile(), v, map[string]any{"path": "missing.md"})
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestPathArgumentsAreValidated(t *testing.T) {
	_, err := call(t, ReadFile(), newVault(), map[string]any{"path": "../etc/passwd"})
	toolErr, ok := tooltypes.AsToolError(err)
	require.True(t, ok)
	assert.Equal(t, tooltypes.KindInvalidPath, toolErr.Kind)
	assert.Equal(t, "path", toolErr.Data["field"])
}

func TestListFilesDefaultsToRoot(t *testing.T) {
	v := newVault()

	out, err := call(t, ListFiles(), v, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "", out["path"])
	assert.Equal(t, 2, out["count"])

	out, err = call(t, ListFiles(), v, map[string]any{"recursive": "true"})
	require.NoError(t, err)
	assert.Equal(t, 3, out["count"])

	_, err = call(t, ListFiles(), v, map[string]any{"path": "Index.md"})
	assert.ErrorIs(t, err, host.ErrNotFolder)
}

func TestCreateAndDelete(t *testing.T) {
	v := newVault()

	_, err := call(t, CreateFile(), v, map[string]any{"path": "Daily/today.md"})
	require.NoError(t, err)
	_, err = call(t, CreateFile(), v, map[string]any{"path": "Daily/today.md"})
	assert.ErrorIs(t, err, host.ErrExists)

	out, err := call(t, CreateFolder(), v, map[string]any{"path": "Archive/2024"})
	require.NoError(t, err)
	assert.Equal(t, "Archive/2024", out["path"])

	_, err = call(t, DeleteFile(), v, map[string]any{"path": "Daily"})
	require.NoError(t, err)
	_, err = call(t, ReadFile(), v, map[string]any{"path": "Daily/today.md"})
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestEditLinesCoercesLineNumbers(t *testing.T) {
	v := newVault()

	out, err := call(t, EditLines(), v, map[string]any{
		"path":      "Index.md",
		"startLine": "2",
		"endLine":   3.0,
		"content":   "replaced",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out["startLine"])
	assert.Equal(t, 3, out["endLine"])

	file, err := v.ReadFile(context.Background(), "Index.md")
	require.NoError(t, err)
	assert.Equal(t, "# Index\nreplaced", file.Content)

	_, err = call(t, EditLines(), v, map[string]any{"path": "Index.md", "startLine": 3, "endLine": 1, "content": ""})
	assert.ErrorIs(t, err, host.ErrInvalidRange)
}
