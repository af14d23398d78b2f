package rollout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-agent/agentcore/internal/models"
)

func TestWriterLoader_RoundTrip(t *testing.T) {
	home := t.TempDir()
	threadID := models.NewThreadId()
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	w, err := NewWriter(home, SessionMeta{ID: threadID, Timestamp: created, Cwd: "/work", Originator: "cli"})
	require.NoError(t, err)

	callID := "call_1"
	require.NoError(t, w.AppendItem(models.ResponseItem{Type: models.ResponseItemMessage, Role: models.RoleUser, Content: []models.ContentPart{{Type: models.ContentInputText, Text: "hi"}}}, created.Add(time.Second)))
	require.NoError(t, w.AppendItem(models.ResponseItem{Type: models.ResponseItemFunctionCall, CallID: callID, Name: "shell"}, created.Add(2*time.Second)))
	require.NoError(t, w.AppendItem(models.ResponseItem{Type: models.ResponseItemFunctionCallOut, CallID: callID, Body: "ok", Success: boolPtr(true)}, created.Add(3*time.Second)))
	require.NoError(t, w.Close())

	result, err := Load(w.Path())
	require.NoError(t, err)
	assert.Equal(t, threadID, result.Meta.ID)
	assert.Equal(t, "/work", result.Meta.Cwd)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, 0, result.DroppedOrphans)
	assert.Equal(t, 0, result.AutoCompleted)
}

func TestWriterLoader_OrphanOutputDropped(t *testing.T) {
	home := t.TempDir()
	threadID := models.NewThreadId()
	created := time.Now()

	w, err := NewWriter(home, SessionMeta{ID: threadID, Timestamp: created})
	require.NoError(t, err)
	require.NoError(t, w.AppendItem(models.ResponseItem{Type: models.ResponseItemFunctionCallOut, CallID: "no_such_call", Body: "stray"}, created))
	require.NoError(t, w.Close())

	result, err := Load(w.Path())
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Equal(t, 1, result.DroppedOrphans)
}

func TestWriterLoader_UnpairedCallAutoCompleted(t *testing.T) {
	home := t.TempDir()
	threadID := models.NewThreadId()
	created := time.Now()

	w, err := NewWriter(home, SessionMeta{ID: threadID, Timestamp: created})
	require.NoError(t, err)
	require.NoError(t, w.AppendItem(models.ResponseItem{Type: models.ResponseItemFunctionCall, CallID: "dangling", Name: "shell"}, created))
	require.NoError(t, w.Close())

	result, err := Load(w.Path())
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, 1, result.AutoCompleted)
	assert.Equal(t, models.ResponseItemFunctionCallOut, result.Items[1].Type)
	assert.Equal(t, "aborted", result.Items[1].Body)
}

func boolPtr(b bool) *bool { return &b }
