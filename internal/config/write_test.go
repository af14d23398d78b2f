package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValueWrite_StaleVersionConflict implements spec §8 scenario 2.
func TestValueWrite_StaleVersionConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \"gpt-old\"\n"), 0o644))

	result, err := ValueWrite(path, "model", "gpt-new", MergeReplace, "sha256:stale")
	require.Error(t, err)
	require.Equal(t, WriteVersionConflict, result.Status)

	var conflict *ErrConfigVersionConflict
	require.ErrorAs(t, err, &conflict)
}

// TestBatchWrite_ThenRead implements spec §8 scenario 3.
func TestBatchWrite_ThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	edits := []Edit{
		{KeyPath: "sandbox_mode", Value: "workspace-write", MergeStrategy: MergeReplace},
		{
			KeyPath: "sandbox_workspace_write",
			Value: map[string]any{
				"writable_roots": []any{"/tmp"},
				"network_access": false,
			},
			MergeStrategy: MergeReplace,
		},
	}

	result, err := BatchWrite(path, edits, "")
	require.NoError(t, err)
	require.Equal(t, WriteOk, result.Status)

	layer, ok, err := LoadFileLayer(path, SourceUser)
	require.NoError(t, err)
	require.True(t, ok)

	sww, ok := layer.Value["sandbox_workspace_write"].(map[string]any)
	require.True(t, ok)
	roots, ok := sww["writable_roots"].([]any)
	require.True(t, ok)
	require.Equal(t, []any{"/tmp"}, roots)
	require.Equal(t, false, sww["network_access"])
}

func TestValueWrite_NoExpectedVersionSkipsCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \"gpt-old\"\n"), 0o644))

	result, err := ValueWrite(path, "model", "gpt-new", MergeReplace, "")
	require.NoError(t, err)
	require.Equal(t, WriteOk, result.Status)
}

func TestParseCLIOverride(t *testing.T) {
	key, value, err := ParseCLIOverride("sandbox_mode=\"workspace-write\"")
	require.NoError(t, err)
	require.Equal(t, "sandbox_mode", key)
	require.Equal(t, "workspace-write", value)

	key, value, err = ParseCLIOverride("sandbox_network_access=true")
	require.NoError(t, err)
	require.Equal(t, "sandbox_network_access", key)
	require.Equal(t, true, value)
}
