package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ParseCLIOverride parses a single "-c key=value" CLI override (spec §6)
// into a dotted key path and a TOML-scalar-decoded value. The value is
// decoded by wrapping it in a synthetic "v = <value>" TOML line and
// decoding the scalar, so booleans/numbers/strings/arrays follow TOML
// scalar syntax rather than ad hoc parsing.
func ParseCLIOverride(arg string) (keyPath string, value any, err error) {
	idx := strings.Index(arg, "=")
	if idx < 0 {
		return "", nil, fmt.Errorf("config: invalid -c override %q, expected key=value", arg)
	}
	keyPath = strings.TrimSpace(arg[:idx])
	rawValue := strings.TrimSpace(arg[idx+1:])
	if keyPath == "" {
		return "", nil, fmt.Errorf("config: invalid -c override %q, empty key", arg)
	}

	var wrapper struct {
		V any `toml:"v"`
	}
	line := fmt.Sprintf("v = %s", rawValue)
	if _, err := toml.Decode(line, &wrapper); err != nil {
		// Not valid TOML scalar syntax (e.g. a bare word) — fall back to
		// treating it as a raw string, matching how a shell would pass an
		// unquoted override value.
		return keyPath, rawValue, nil
	}
	return keyPath, wrapper.V, nil
}

// ParseCLIOverrides parses a set of "-c key=value" flags into Edits
// applied with MergeReplace.
func ParseCLIOverrides(args []string) ([]Edit, error) {
	edits := make([]Edit, 0, len(args))
	for _, a := range args {
		k, v, err := ParseCLIOverride(a)
		if err != nil {
			return nil, err
		}
		edits = append(edits, Edit{KeyPath: k, Value: v, MergeStrategy: MergeReplace})
	}
	return edits, nil
}
