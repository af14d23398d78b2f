package rollout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/codex-agent/agentcore/internal/history"
	"github.com/codex-agent/agentcore/internal/models"
)

// LoadResult is a replayed thread: its header plus its normalized items.
type LoadResult struct {
	Meta           SessionMeta
	Items          []models.ResponseItem
	DroppedOrphans int
	AutoCompleted  int
}

// Load replays a thread's rollout file from disk, applying
// history.NormalizeResponseItems' orphan-drop / auto-complete rules so a
// file truncated mid-turn (process killed during a tool call) still yields
// a consistent conversation.
func Load(path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("rollout: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var meta SessionMeta
	var haveMeta bool
	var items []models.ResponseItem

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		if !haveMeta {
			if err := json.Unmarshal(raw, &meta); err != nil {
				return LoadResult{}, fmt.Errorf("rollout: decoding session meta in %s: %w", path, err)
			}
			haveMeta = true
			continue
		}
		var line RolloutLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return LoadResult{}, fmt.Errorf("rollout: decoding rollout line in %s: %w", path, err)
		}
		items = append(items, line.Item)
	}
	if err := scanner.Err(); err != nil {
		return LoadResult{}, fmt.Errorf("rollout: reading %s: %w", path, err)
	}

	normalized := history.NormalizeResponseItems(items)
	return LoadResult{
		Meta:           meta,
		Items:          normalized.Items,
		DroppedOrphans: normalized.DroppedOrphans,
		AutoCompleted:  normalized.AutoCompleted,
	}, nil
}
