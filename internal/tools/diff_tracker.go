package tools

import (
	"os"
	"sort"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffTracker snapshots file content the first time a turn touches a path
// (before any edit lands) and diffs it against the file's current on-disk
// content to produce TurnDiffEvent, per spec §4.E. One tracker is scoped to
// a single turn; the workflow layer resets it (via a fresh DiffTracker) at
// turn boundaries.
//
// The unified-diff rendering is ported from the teacher's cli renderer's
// line-diff approach, generalized onto github.com/pmezard/go-difflib
// (already in the corpus's dependency set via testify's own use of it)
// instead of shelling out, since this tracker runs inside a Temporal
// activity where spawning `diff` is an avoidable external dependency.
type DiffTracker struct {
	mu      sync.Mutex
	before  map[string]string // path -> content at first touch ("" if the path didn't exist)
	existed map[string]bool   // path -> whether it existed at first touch
}

// NewDiffTracker creates an empty tracker for one turn.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{
		before:  make(map[string]string),
		existed: make(map[string]bool),
	}
}

// SnapshotBeforeChange records path's current content the first time it is
// seen in this turn; later calls for the same path are no-ops, so the diff
// is always against the turn's starting state, not the previous call's.
func (t *DiffTracker) SnapshotBeforeChange(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.existed[path]; seen {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.existed[path] = false
		t.before[path] = ""
		return
	}
	t.existed[path] = true
	t.before[path] = string(data)
}

// Paths returns the set of paths touched this turn, sorted for stable
// output.
func (t *DiffTracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, 0, len(t.before))
	for p := range t.before {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// TurnDiff renders the accumulated before/after state as a single unified
// diff across every touched path.
func (t *DiffTracker) TurnDiff(turnID string) (TurnDiffEvent, error) {
	paths := t.Paths()

	t.mu.Lock()
	before := make(map[string]string, len(t.before))
	for k, v := range t.before {
		before[k] = v
	}
	t.mu.Unlock()

	var combined string
	for _, path := range paths {
		after, err := os.ReadFile(path)
		afterText := ""
		if err == nil {
			afterText = string(after)
		}
		if afterText == before[path] {
			continue
		}

		ud := difflib.UnifiedDiff{
			A:        difflib.SplitLines(before[path]),
			B:        difflib.SplitLines(afterText),
			FromFile: path,
			ToFile:   path,
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(ud)
		if err != nil {
			return TurnDiffEvent{}, err
		}
		combined += text
	}

	return TurnDiffEvent{TurnID: turnID, Paths: paths, UnifiedDiff: combined}, nil
}
