package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrConfigVersionConflict is returned by ValueWrite/BatchWrite when the
// caller's expectedVersion does not match the file's current version
// (optimistic concurrency, spec §5/§7, scenario 2).
type ErrConfigVersionConflict struct {
	FilePath string
}

func (e *ErrConfigVersionConflict) Error() string {
	return fmt.Sprintf("config: version conflict writing %s", e.FilePath)
}

// Edit is one key/value edit within a batch write.
type Edit struct {
	KeyPath       string
	Value         any
	MergeStrategy MergeStrategy
}

// WriteResult is returned by ValueWrite/BatchWrite.
type WriteResult struct {
	Status   WriteStatus
	FilePath string
}

// ValueWrite applies a single edit to the TOML file at filePath, enforcing
// expectedVersion as an optimistic-concurrency check (empty string skips the
// check). Returns ErrConfigVersionConflict on mismatch; otherwise writes the
// file atomically (temp file + rename) and returns WriteOk.
//
// Maps to: codex-rs/config value_write RPC handler (spec §6, scenario 2/3).
func ValueWrite(filePath, keyPath string, value any, strategy MergeStrategy, expectedVersion string) (WriteResult, error) {
	return BatchWrite(filePath, []Edit{{KeyPath: keyPath, Value: value, MergeStrategy: strategy}}, expectedVersion)
}

// BatchWrite applies multiple edits atomically to the TOML file at
// filePath, enforcing expectedVersion once against the file's current
// on-disk content.
func BatchWrite(filePath string, edits []Edit, expectedVersion string) (WriteResult, error) {
	current, err := readTOMLFile(filePath)
	if err != nil {
		return WriteResult{}, err
	}

	if expectedVersion != "" {
		currentVersion := VersionForTOML(current)
		if currentVersion != expectedVersion {
			return WriteResult{Status: WriteVersionConflict, FilePath: filePath}, &ErrConfigVersionConflict{FilePath: filePath}
		}
	}

	for _, e := range edits {
		applyEdit(current, e)
	}

	if err := writeTOMLFileAtomic(filePath, current); err != nil {
		return WriteResult{}, err
	}

	return WriteResult{Status: WriteOk, FilePath: filePath}, nil
}

func applyEdit(doc map[string]any, e Edit) {
	keys := strings.Split(e.KeyPath, ".")
	parent := doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := parent[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			parent[k] = next
		}
		parent = next
	}
	leaf := keys[len(keys)-1]

	if e.MergeStrategy == MergeMergeTables {
		if existing, ok := parent[leaf].(map[string]any); ok {
			if incoming, ok := e.Value.(map[string]any); ok {
				parent[leaf] = MergeTOMLValues(cloneTable(existing), incoming)
				return
			}
		}
	}
	parent[leaf] = e.Value
}

func readTOMLFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func writeTOMLFileAtomic(path string, doc map[string]any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := toml.NewEncoder(tmp)
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
