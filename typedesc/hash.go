package typedesc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RIHS01Prefix prefixes every version 1 type hash.
const RIHS01Prefix = "RIHS01_"

var (
	// ErrMissingPrefix is returned when a hash string does not start with "RIHS".
	ErrMissingPrefix = errors.New("typedesc: type hash does not start with RIHS")
	// ErrInvalidStructure is returned when a hash string is not "RIHSvv_value".
	ErrInvalidStructure = errors.New("typedesc: type hash must have exactly one '_' separator")
	// ErrInvalidVersion is returned when the version segment is not a number.
	ErrInvalidVersion = errors.New("typedesc: type hash version is not numeric")
)

// Hash computes the RIHS01 hash of a type description.
//
// The description is rendered as canonical JSON with ", " and ": "
// separators, default values stripped, and referenced types sorted by name.
// The SHA-256 digest of that text is hex-encoded and prefixed with RIHS01_.
func Hash(m Message) string {
	sum := sha256.Sum256([]byte(CanonicalJSON(m)))
	return RIHS01Prefix + hex.EncodeToString(sum[:])
}

// CanonicalJSON renders the hashable form of m.
func CanonicalJSON(m Message) string {
	var b strings.Builder
	b.WriteString(`{"type_description": `)
	writeIndividual(&b, m.TypeDescription)
	b.WriteString(`, "referenced_type_descriptions": [`)
	for i, ref := range sortedReferences(m.ReferencedTypeDescriptions) {
		if i > 0 {
			b.WriteString(", ")
		}
		writeIndividual(&b, ref)
	}
	b.WriteString("]}")
	return b.String()
}

// sortedReferences deduplicates by type name (first occurrence wins) and
// sorts lexicographically. The input slice is left untouched.
func sortedReferences(refs []Individual) []Individual {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Individual, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.TypeName]; ok {
			continue
		}
		seen[r.TypeName] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}

func writeIndividual(b *strings.Builder, d Individual) {
	b.WriteString(`{"type_name": `)
	writeString(b, d.TypeName)
	b.WriteString(`, "fields": [`)
	for i, f := range d.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`{"name": `)
		writeString(b, f.Name)
		b.WriteString(`, "type": {"type_id": `)
		b.WriteString(strconv.FormatUint(uint64(f.Type.TypeID), 10))
		b.WriteString(`, "capacity": `)
		b.WriteString(strconv.FormatUint(f.Type.Capacity, 10))
		b.WriteString(`, "string_capacity": `)
		b.WriteString(strconv.FormatUint(f.Type.StringCapacity, 10))
		b.WriteString(`, "nested_type_name": `)
		writeString(b, f.Type.NestedTypeName)
		b.WriteString("}}")
	}
	b.WriteString("]}")
}

// writeString quotes s the way Python's json.dumps does with ensure_ascii.
func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r > 0x7f && r <= 0xffff):
				fmt.Fprintf(b, `\u%04x`, r)
			case r > 0xffff:
				r -= 0x10000
				fmt.Fprintf(b, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

// ParseRIHS splits a type hash into its version and hex value.
func ParseRIHS(s string) (int, string, error) {
	if !strings.HasPrefix(s, "RIHS") {
		return 0, "", fmt.Errorf("%w: %q", ErrMissingPrefix, s)
	}
	parts := strings.Split(s, "_")
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidStructure, s)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[0], "RIHS"))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return version, parts[1], nil
}
