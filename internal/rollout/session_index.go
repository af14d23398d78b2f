package rollout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codex-agent/agentcore/internal/models"
)

// sessionIndexFile matches codex-rs SESSION_INDEX_FILE.
const sessionIndexFile = "session_index.jsonl"

// readChunkSize matches codex-rs READ_CHUNK_SIZE: the index is scanned
// backward in fixed-size chunks rather than loaded whole, so a long-lived
// index with many renamed threads doesn't require a full read for a lookup
// that usually resolves in the last few entries.
const readChunkSize = 8192

// SessionIndexEntry is one append-only line in session_index.jsonl.
//
// Maps to: codex-rs/core/src/rollout/session_index.rs SessionIndexEntry
type SessionIndexEntry struct {
	ID         models.ThreadId `json:"id"`
	ThreadName string          `json:"thread_name"`
	UpdatedAt  string          `json:"updated_at"`
}

func sessionIndexPath(codexHome string) string {
	return filepath.Join(codexHome, sessionIndexFile)
}

// indexAppendMu serializes appends to a single process's view of the index
// file. A cross-process writer would need an advisory flock (as
// internal/execpolicy's policy file does); this package only needs to
// coordinate within one session service process, since all rollout writes
// for a given codexHome happen through Temporal activities scheduled by
// that process.
var indexAppendMu sync.Mutex

// AppendThreadName appends a thread-name update to the session index. The
// index is append-only; the most recent entry wins when resolving names or
// ids.
//
// Maps to: codex-rs/core/src/rollout/session_index.rs append_thread_name
func AppendThreadName(codexHome string, threadID models.ThreadId, name string, now time.Time) error {
	entry := SessionIndexEntry{
		ID:         threadID,
		ThreadName: name,
		UpdatedAt:  now.UTC().Format(time.RFC3339),
	}
	return appendSessionIndexEntry(codexHome, entry)
}

func appendSessionIndexEntry(codexHome string, entry SessionIndexEntry) error {
	indexAppendMu.Lock()
	defer indexAppendMu.Unlock()

	path := sessionIndexPath(codexHome)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("rollout: creating codex home: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("rollout: opening session index: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("rollout: encoding session index entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("rollout: writing session index entry: %w", err)
	}
	return f.Sync()
}

// FindThreadNameByID returns the latest thread name recorded for threadID,
// or ("", false, nil) if none is recorded.
//
// Maps to: codex-rs/core/src/rollout/session_index.rs find_thread_name_by_id
func FindThreadNameByID(codexHome string, threadID models.ThreadId) (string, bool, error) {
	entry, ok, err := scanIndexFromEnd(sessionIndexPath(codexHome), func(e SessionIndexEntry) bool {
		return e.ID == threadID
	})
	if err != nil || !ok {
		return "", ok, err
	}
	return entry.ThreadName, true, nil
}

// FindThreadIDByName returns the most recently updated thread id recorded
// under name, or (zero, false, nil) if none is recorded.
//
// Maps to: codex-rs/core/src/rollout/session_index.rs find_thread_id_by_name
func FindThreadIDByName(codexHome string, name string) (models.ThreadId, bool, error) {
	if strings.TrimSpace(name) == "" {
		return models.ThreadId{}, false, nil
	}
	entry, ok, err := scanIndexFromEnd(sessionIndexPath(codexHome), func(e SessionIndexEntry) bool {
		return e.ThreadName == name
	})
	if err != nil || !ok {
		return models.ThreadId{}, ok, err
	}
	return entry.ID, true, nil
}

// scanIndexFromEnd reads path backward in readChunkSize-byte chunks,
// looking for the last (i.e. newest-appended) line matching predicate. It
// is ported directly from the original Rust implementation's
// scan_index_from_end: reading backward means the typical lookup (resolve
// a recently renamed or recently active thread) touches only the tail of
// what can be an arbitrarily long append-only file.
func scanIndexFromEnd(path string, predicate func(SessionIndexEntry) bool) (SessionIndexEntry, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionIndexEntry{}, false, nil
		}
		return SessionIndexEntry{}, false, fmt.Errorf("rollout: opening session index: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return SessionIndexEntry{}, false, fmt.Errorf("rollout: stat session index: %w", err)
	}

	remaining := info.Size()
	var lineRev []byte
	buf := make([]byte, readChunkSize)

	for remaining > 0 {
		readSize := int64(readChunkSize)
		if remaining < readSize {
			readSize = remaining
		}
		remaining -= readSize

		if _, err := f.Seek(remaining, io.SeekStart); err != nil {
			return SessionIndexEntry{}, false, fmt.Errorf("rollout: seeking session index: %w", err)
		}
		if _, err := io.ReadFull(f, buf[:readSize]); err != nil {
			return SessionIndexEntry{}, false, fmt.Errorf("rollout: reading session index: %w", err)
		}

		for i := readSize - 1; i >= 0; i-- {
			b := buf[i]
			if b == '\n' {
				if entry, ok := parseLineFromRev(lineRev, predicate); ok {
					return entry, true, nil
				}
				lineRev = lineRev[:0]
				continue
			}
			lineRev = append(lineRev, b)
		}
	}

	if entry, ok := parseLineFromRev(lineRev, predicate); ok {
		return entry, true, nil
	}
	return SessionIndexEntry{}, false, nil
}

// parseLineFromRev reverses a line collected back-to-front during the
// backward scan, parses it as a SessionIndexEntry, and reports whether it
// matches predicate. Malformed or blank lines are silently skipped, since a
// torn final write (process killed mid-append) should not abort the scan.
func parseLineFromRev(lineRev []byte, predicate func(SessionIndexEntry) bool) (SessionIndexEntry, bool) {
	if len(lineRev) == 0 {
		return SessionIndexEntry{}, false
	}
	reversed := make([]byte, len(lineRev))
	for i, b := range lineRev {
		reversed[len(lineRev)-1-i] = b
	}
	line := strings.TrimRight(string(reversed), "\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return SessionIndexEntry{}, false
	}
	var entry SessionIndexEntry
	if err := json.Unmarshal([]byte(trimmed), &entry); err != nil {
		return SessionIndexEntry{}, false
	}
	if predicate(entry) {
		return entry, true
	}
	return SessionIndexEntry{}, false
}
