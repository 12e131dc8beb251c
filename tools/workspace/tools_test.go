package workspace

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
		"Index.md":  "# Index\nhello world",
		"Other.md":  "other",
		"image.png": "png",
	}))
}

func call(t *testing.T, def tooltypes.Definition, p host.Provider, raw map[string]any) (any, error) {
	t.Helper()
	args, err := schema.Validate(def.Schema, raw)
	require.NoError(t, err)
	return def.Handler(context.Background(), args, p)
}

func TestActiveFileWithoutEditor(t *testing.T) {
	_, err := call(t, GetActiveFile(), newVault(), nil)
	require.Error(t, err)

	toolErr := tooltypes.FromError(err)
	assert.Equal(t, "No active file", toolErr.Message)
	assert.Equal(t, false, toolErr.Data["active"])
}

func TestOpenFileEchoesArguments(t *testing.T) {
	v := newVault()

	out, err := call(t, OpenFile(), v, map[string]any{"path": "Index", "line": 2})
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, "Index.md", result["path"])
	assert.Equal(t, 2, result["line"])
	assert.Equal(t, false, result["newLeaf"])

	out, err = call(t, GetActiveFile(), v, map[string]any{"includeContent": true})
	require.NoError(t, err)
	active := out.(map[string]any)
	assert.Equal(t, true, active["active"])
	assert.Equal(t, "Index.md", active["path"])
	assert.Equal(t, "# Index\nhello world", active["content"])

	out, err = call(t, GetActiveFile(), v, nil)
	require.NoError(t, err)
	assert.NotContains(t, out.(map[string]any), "content")

	_, err = call(t, OpenFile(), v, map[string]any{"path": "image.png"})
	require.NoError(t, err)
	_, err = call(t, OpenFile(), v, map[string]any{"path": "Index", "newLeaf": true})
	require.NoError(t, err)

	out, err = call(t, ListOpenFiles(), v, nil)
	require.NoError(t, err)
	listed := out.(map[string]any)
	assert.Equal(t, []string{"Index.md", "image.png", "Index.md"}, listed["files"])
	assert.Equal(t, 3, listed["count"])

	_, err = call(t, OpenFile(), v, map[string]any{"path": "Missing"})
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestSelectionAndInsertText(t *testing.T) {
	v := newVault()

	_, err := call(t, GetSelection(), v, nil)
	assert.Equal(t, "No active editor", tooltypes.FromError(err).Message)

	_, err = call(t, OpenFile(), v, map[string]any{"path": "Index.md", "line": 2})
	require.NoError(t, err)
	require.NoError(t, v.Select(host.Position{Line: 1, Ch: 6}, host.Position{Line: 1, Ch: 11}))

	out, err := call(t, GetSelection(), v, nil)
	require.NoError(t, err)
	assert.Equal(t, "world", out.(host.Selection).Text)

	out, err = call(t, InsertText(), v, map[string]any{"text": "there"})
	require.NoError(t, err)
	assert.Equal(t, host.Position{Line: 1, Ch: 11}, out.(map[string]any)["cursor"])

	_, err = call(t, InsertText(), v, map[string]any{"text": "> ", "line": "1"})
	require.NoError(t, err)

	file, err := v.ReadFile(context.Background(), "Index.md")
	require.NoError(t, err)
	assert.Equal(t, "> # Index\nhello there", file.Content)
}
