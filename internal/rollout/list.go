package rollout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/codex-agent/agentcore/internal/models"
)

// ThreadSummary is one entry in a paginated thread listing.
type ThreadSummary struct {
	ID        models.ThreadId
	Path      string
	UpdatedAt time.Time
}

// rolloutFileName matches rollout-<timestamp>-<thread_id>.jsonl, parsing out
// the embedded thread id. The timestamp segment is not re-parsed for
// ordering purposes; UpdatedAt instead uses the file's own modification
// time, which reflects the last item actually appended rather than when
// the thread was created.
var rolloutFileName = regexp.MustCompile(`^rollout-[0-9T-]+-([0-9a-fA-F-]{36})\.jsonl$`)

// FindThreadPathByID locates a thread's rollout file by id, scanning the
// codexHome/sessions tree. Returns ("", false, nil) if no file matches.
//
// Maps to: codex-rs/core/src/rollout/list.rs find_thread_path_by_id_str
// (referenced by session_index.rs but not present in the retrieved
// original source; the directory-walk approach here is inferred from the
// rollout layout spec.md §6 pins down).
func FindThreadPathByID(codexHome string, threadID models.ThreadId) (string, bool, error) {
	want := threadID.String()
	var found string

	err := walkSessions(codexHome, func(path string, id string) bool {
		if id == want {
			found = path
			return false // stop walking
		}
		return true
	})
	if err != nil {
		return "", false, err
	}
	return found, found != "", nil
}

// ListThreads enumerates threads under codexHome/sessions, newest first,
// keyset-paginated by (updated_at, thread_id) descending (spec.md §6).
//
// cursor, when non-empty, is the opaque value returned as nextCursor from a
// previous call; results resume strictly after that position. limit <= 0
// means "no limit".
func ListThreads(codexHome string, cursor string, limit int) (threads []ThreadSummary, nextCursor string, err error) {
	var all []ThreadSummary
	err = walkSessionsWithInfo(codexHome, func(path string, id string, modTime time.Time) bool {
		threadID, parseErr := models.ParseThreadId(id)
		if parseErr != nil {
			return true
		}
		all = append(all, ThreadSummary{ID: threadID, Path: path, UpdatedAt: modTime})
		return true
	})
	if err != nil {
		return nil, "", err
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	afterCursor, updatedAt, threadID := false, time.Time{}, ""
	if cursor != "" {
		updatedAt, threadID, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		afterCursor = true
	}

	start := 0
	if afterCursor {
		for i, t := range all {
			if t.UpdatedAt.Equal(updatedAt) && t.ID.String() == threadID {
				start = i + 1
				break
			}
			if t.UpdatedAt.Before(updatedAt) || (t.UpdatedAt.Equal(updatedAt) && t.ID.String() < threadID) {
				start = i
				break
			}
		}
	}

	page := all[min(start, len(all)):]
	if limit > 0 && len(page) > limit {
		last := page[limit-1]
		nextCursor = encodeCursor(last.UpdatedAt, last.ID.String())
		page = page[:limit]
	}

	return page, nextCursor, nil
}

func encodeCursor(updatedAt time.Time, threadID string) string {
	return fmt.Sprintf("%s|%s", updatedAt.UTC().Format(time.RFC3339Nano), threadID)
}

func decodeCursor(cursor string) (time.Time, string, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("rollout: malformed cursor %q", cursor)
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("rollout: malformed cursor timestamp %q: %w", cursor, err)
	}
	return t, parts[1], nil
}

// walkSessions visits every rollout file under codexHome/sessions,
// extracting the thread id from its filename. visit returning false stops
// the walk early.
func walkSessions(codexHome string, visit func(path, threadID string) bool) error {
	return walkSessionsWithInfo(codexHome, func(path, id string, _ time.Time) bool {
		return visit(path, id)
	})
}

func walkSessionsWithInfo(codexHome string, visit func(path, threadID string, modTime time.Time) bool) error {
	root := filepath.Join(codexHome, "sessions")
	stopped := fmt.Errorf("rollout: walk stopped")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := rolloutFileName.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !visit(path, m[1], info.ModTime()) {
			return stopped
		}
		return nil
	})
	if err != nil && err != stopped {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
