package config

import (
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidData is returned when a layer stack's invariants can't be
// satisfied — ambiguous precedence, duplicate User layers, or an
// unorderable set of Project layers. Per spec §9's Open Question, the
// engine rejects the ambiguous case outright rather than guessing a
// tie-break.
type ErrInvalidData struct{ Reason string }

func (e *ErrInvalidData) Error() string { return "config: invalid data: " + e.Reason }

// Ordering selects which end of the precedence axis GetLayers starts from.
type Ordering int

const (
	LowestPrecedenceFirst Ordering = iota
	HighestPrecedenceFirst
)

// Stack is an ordered collection of config layers, lowest-precedence first,
// validated against the ordering invariants in spec §4.A.
//
// Maps to: codex-rs/config/src/state.rs ConfigLayerStack.
type Stack struct {
	layers        []Layer
	userLayerIdx  int // -1 if none
}

// New validates layer ordering and constructs a Stack.
//
// Validates: (a) layers are sorted by precedence, (b) at most one User
// layer, (c) Project layers are ordered root->cwd (each's ProjectPath is an
// ancestor of the next's).
func New(layers []Layer) (*Stack, error) {
	if err := verifyOrdering(layers); err != nil {
		return nil, err
	}

	userIdx := -1
	for i, l := range layers {
		if l.Source == SourceUser {
			userIdx = i
		}
	}

	return &Stack{layers: append([]Layer(nil), layers...), userLayerIdx: userIdx}, nil
}

func verifyOrdering(layers []Layer) error {
	prev := -1
	for _, l := range layers {
		p, err := l.Source.Precedence()
		if err != nil {
			return &ErrInvalidData{Reason: err.Error()}
		}
		if p < prev {
			return &ErrInvalidData{Reason: "config layers are not in correct precedence order"}
		}
		prev = p
	}

	userCount := 0
	var lastProjectPath string
	haveProject := false
	for _, l := range layers {
		if l.Source == SourceUser {
			userCount++
			if userCount > 1 {
				return &ErrInvalidData{Reason: "multiple user config layers found"}
			}
		}
		if l.Source == SourceProject {
			if haveProject {
				if lastProjectPath == l.ProjectPath || !isAncestorOf(lastProjectPath, l.ProjectPath) {
					return &ErrInvalidData{Reason: "project layers are not ordered from root to cwd"}
				}
			}
			lastProjectPath = l.ProjectPath
			haveProject = true
		}
	}

	return nil
}

// isAncestorOf reports whether ancestor is a path-prefix ancestor of child
// (using "/"-delimited path semantics, not touching the filesystem).
func isAncestorOf(ancestor, child string) bool {
	ancestor = strings.TrimRight(ancestor, "/")
	child = strings.TrimRight(child, "/")
	if ancestor == "" || child == "" {
		return false
	}
	if ancestor == child {
		return false
	}
	return strings.HasPrefix(child, ancestor+"/")
}

// GetLayers returns the enabled (or all, if includeDisabled) layers in the
// requested ordering.
func (s *Stack) GetLayers(ordering Ordering, includeDisabled bool) []Layer {
	out := make([]Layer, 0, len(s.layers))
	for _, l := range s.layers {
		if includeDisabled || !l.IsDisabled() {
			out = append(out, l)
		}
	}
	if ordering == HighestPrecedenceFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// GetUserLayer returns the stack's User layer, if any.
func (s *Stack) GetUserLayer() (Layer, bool) {
	if s.userLayerIdx < 0 {
		return Layer{}, false
	}
	return s.layers[s.userLayerIdx], true
}

// EffectiveConfig deep-merges all enabled layers in ascending precedence.
func (s *Stack) EffectiveConfig() map[string]any {
	merged := map[string]any{}
	for _, l := range s.GetLayers(LowestPrecedenceFirst, false) {
		merged = MergeTOMLValues(merged, l.Value)
	}
	return merged
}

// Origins walks each enabled layer lowest->highest, recording every leaf
// (scalar or array element) under its dotted path; a later layer replaces
// earlier entries. Array elements are indexed; replacing an array replaces
// all its origin entries.
func (s *Stack) Origins() map[string]LayerMetadata {
	origins := map[string]LayerMetadata{}
	for _, l := range s.GetLayers(LowestPrecedenceFirst, false) {
		meta := l.Metadata()
		recordOrigins(l.Value, meta, nil, origins)
	}
	return origins
}

func recordOrigins(v any, meta LayerMetadata, path []string, origins map[string]LayerMetadata) {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 && len(path) > 0 {
			// An empty table still replaces whatever this key previously
			// pointed to; clear any origin entries nested under it.
			prefix := strings.Join(path, ".") + "."
			for k := range origins {
				if strings.HasPrefix(k, prefix) {
					delete(origins, k)
				}
			}
			return
		}
		// Replacing a table at this path invalidates any scalar previously
		// recorded directly at this path (now shadowed by a table).
		if len(path) > 0 {
			delete(origins, strings.Join(path, "."))
		}
		for k, sub := range val {
			recordOrigins(sub, meta, append(path, k), origins)
		}
	case []any:
		key := strings.Join(path, ".")
		// Replacing an array replaces all of its origin entries: clear any
		// previously-recorded indices under this path before re-recording.
		prefix := key + "."
		for k := range origins {
			if k == key || strings.HasPrefix(k, prefix) {
				delete(origins, k)
			}
		}
		for i, e := range val {
			recordOrigins(e, meta, append(path, fmt.Sprintf("%d", i)), origins)
		}
	default:
		origins[strings.Join(path, ".")] = meta
	}
}

// WithUserConfig inserts or replaces the User layer at its precedence
// position, returning a new Stack.
func (s *Stack) WithUserConfig(value map[string]any) (*Stack, error) {
	newLayer := NewLayer(SourceUser, value)
	layers := append([]Layer(nil), s.layers...)

	if s.userLayerIdx >= 0 {
		layers[s.userLayerIdx] = newLayer
		return &Stack{layers: layers, userLayerIdx: s.userLayerIdx}, nil
	}

	userPrec, _ := SourceUser.Precedence()
	insertAt := len(layers)
	for i, l := range layers {
		p, _ := l.Source.Precedence()
		if p > userPrec {
			insertAt = i
			break
		}
	}
	layers = append(layers, Layer{})
	copy(layers[insertAt+1:], layers[insertAt:])
	layers[insertAt] = newLayer

	return &Stack{layers: layers, userLayerIdx: insertAt}, nil
}

// sortByPrecedence is available to code in this package assembling a layer set before
// constructing a Stack (e.g. from multiple file sources loaded
// concurrently); it does not itself validate Project/User invariants.
func sortByPrecedence(layers []Layer) {
	sort.SliceStable(layers, func(i, j int) bool {
		pi, _ := layers[i].Source.Precedence()
		pj, _ := layers[j].Source.Precedence()
		return pi < pj
	})
}
