package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// VersionForTOML computes a deterministic content-hash fingerprint over a
// canonical serialization of a parsed TOML value tree: keys sorted, numbers
// and strings normalized to a single textual form. Two deep-equal values
// always produce equal versions (spec §8 invariant 4).
//
// There is no ecosystem "canonical TOML" hasher in the example corpus (the
// teacher and the rest of the pack use BurntSushi/toml purely for
// decode/encode, never canonicalization), so this is one of the few spots
// that reaches for the standard library (crypto/sha256) rather than a
// third-party dependency — see DESIGN.md.
//
// Maps to: codex-rs/config/src/fingerprint.rs version_for_toml.
func VersionForTOML(v any) string {
	var b strings.Builder
	canonicalize(&b, v)
	sum := sha256.Sum256([]byte(b.String()))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func canonicalize(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			canonicalize(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, e)
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(val))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int:
		b.WriteString(normalizedNumber(float64(val)))
	case int64:
		b.WriteString(normalizedNumber(float64(val)))
	case float64:
		b.WriteString(normalizedNumber(val))
	default:
		b.WriteString(fmt.Sprintf("%v", val))
	}
}

// normalizedNumber renders a number in a single canonical textual form so
// that 1, 1.0, and 1e0 all fingerprint identically.
func normalizedNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
