package rollout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codex-agent/agentcore/internal/models"
)

// rolloutTimestampFormat matches the `<timestamp>` segment of
// rollout-<timestamp>-<thread_id>.jsonl (spec §6).
const rolloutTimestampFormat = "2006-01-02T15-04-05"

// Writer appends a single thread's rollout file: one SessionMeta line at
// creation, then one RolloutLine per recorded item. The file is opened
// append-only and each write is flushed immediately, matching the
// session_index.rs original's per-write flush discipline.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// ThreadFilePath computes the on-disk path for a thread's rollout file,
// given the time the thread was created.
//
// Maps to: spec.md §6 "~/.codex/sessions/YYYY/MM/DD/rollout-<timestamp>-<thread_id>.jsonl"
func ThreadFilePath(codexHome string, threadID models.ThreadId, createdAt time.Time) string {
	dateDir := filepath.Join(
		fmt.Sprintf("%04d", createdAt.Year()),
		fmt.Sprintf("%02d", createdAt.Month()),
		fmt.Sprintf("%02d", createdAt.Day()),
	)
	name := fmt.Sprintf("rollout-%s-%s.jsonl", createdAt.UTC().Format(rolloutTimestampFormat), threadID.String())
	return filepath.Join(codexHome, "sessions", dateDir, name)
}

// NewWriter creates a thread's rollout file (or opens it for append, if one
// already exists for this thread id and timestamp) and writes the
// SessionMeta header line.
func NewWriter(codexHome string, meta SessionMeta) (*Writer, error) {
	path := ThreadFilePath(codexHome, meta.ID, meta.Timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("rollout: creating session directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rollout: opening rollout file: %w", err)
	}

	w := &Writer{file: f, path: path}
	if err := w.writeLine(meta); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the rollout file's path on disk.
func (w *Writer) Path() string {
	return w.path
}

// AppendItem writes one RolloutLine for item, timestamped now.
func (w *Writer) AppendItem(item models.ResponseItem, now time.Time) error {
	return w.writeLine(RolloutLine{Timestamp: now, Item: item})
}

func (w *Writer) writeLine(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("rollout: encoding line: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("rollout: writing line: %w", err)
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
