package approval

import "sort"

// ShellApprovalKey is the approval key for the shell tool: the resolved
// command vector plus working directory (spec §3).
type ShellApprovalKey struct {
	Command []string `json:"command"`
	Cwd     string   `json:"cwd"`
}

// PatchApprovalKey is the approval key for the patch tool: one target file
// path. Each target of a multi-file patch is cached independently (spec
// §3, §4.B rationale).
type PatchApprovalKey struct {
	Path string `json:"path"`
}

// PatchApprovalKeys builds one PatchApprovalKey per affected path, in
// deterministic (sorted) order so repeated calls with the same path set
// produce stable cache keys regardless of map iteration order upstream.
func PatchApprovalKeys(paths []string) []any {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	keys := make([]any, len(sorted))
	for i, p := range sorted {
		keys[i] = PatchApprovalKey{Path: p}
	}
	return keys
}
