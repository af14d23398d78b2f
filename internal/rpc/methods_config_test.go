package rpc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-agent/agentcore/internal/config"
)

func TestConfigService_ReadReturnsEffectiveConfigAndOrigins(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("model = \"gpt-user\"\n"), 0o644))

	svc := &ConfigService{CodexHome: home}
	params, err := json.Marshal(configReadParams{IncludeLayers: true})
	require.NoError(t, err)

	result, rpcErr := svc.handleRead(context.Background(), params)
	require.Nil(t, rpcErr)

	read := result.(configReadResult)
	assert.Equal(t, "gpt-user", read.Config["model"])
	assert.Equal(t, config.SourceUser, read.Origins["model"].Name)
	require.Len(t, read.Layers, 1)
	assert.Equal(t, config.SourceUser, read.Layers[0].Source)
}

func TestConfigService_ValueWriteDetectsVersionConflict(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("model = \"gpt-user\"\n"), 0o644))

	svc := &ConfigService{CodexHome: home}
	params, err := json.Marshal(configValueWriteParams{
		KeyPath:         "model",
		Value:           "gpt-new",
		ExpectedVersion: "sha256:stale",
	})
	require.NoError(t, err)

	_, rpcErr := svc.handleValueWrite(context.Background(), params)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeConfigVersionConflict, rpcErr.Code)
}

func TestConfigService_BatchWriteThenRead(t *testing.T) {
	home := t.TempDir()

	svc := &ConfigService{CodexHome: home}
	batchParams, err := json.Marshal(configBatchWriteParams{
		Edits: []configEditParams{
			{KeyPath: "sandbox_mode", Value: "workspace-write", MergeStrategy: config.MergeReplace},
			{
				KeyPath: "sandbox_workspace_write",
				Value: map[string]any{
					"writable_roots": []any{"/tmp"},
					"network_access": false,
				},
				MergeStrategy: config.MergeReplace,
			},
		},
	})
	require.NoError(t, err)

	result, rpcErr := svc.handleBatchWrite(context.Background(), batchParams)
	require.Nil(t, rpcErr)
	assert.Equal(t, config.WriteOk, result.(configWriteResult).Status)

	readResult, rpcErr := svc.handleRead(context.Background(), nil)
	require.Nil(t, rpcErr)
	read := readResult.(configReadResult)

	sww := read.Config["sandbox_workspace_write"].(map[string]any)
	assert.Equal(t, false, sww["network_access"])
	assert.Equal(t, []any{"/tmp"}, sww["writable_roots"])
}
