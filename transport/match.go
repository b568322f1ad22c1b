package transport

import (
	"fmt"
	"strings"
)

// ValidateKey rejects keys with empty chunks or with wildcards embedded in a
// chunk.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, chunk := range strings.Split(key, "/") {
		switch {
		case chunk == "":
			return fmt.Errorf("%w: empty chunk in %q", ErrInvalidKey, key)
		case chunk == "*" || chunk == "**":
		case strings.Contains(chunk, "*"):
			return fmt.Errorf("%w: partial wildcard in %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// IsWild reports whether key contains a wildcard chunk.
func IsWild(key string) bool {
	for _, chunk := range strings.Split(key, "/") {
		if chunk == "*" || chunk == "**" {
			return true
		}
	}
	return false
}

// Intersects reports whether some concrete key matches both a and b. Either
// side may contain wildcards.
func Intersects(a, b string) bool {
	if a == b {
		return true
	}
	return intersectChunks(strings.Split(a, "/"), strings.Split(b, "/"))
}

func intersectChunks(a, b []string) bool {
	switch {
	case len(a) == 0 && len(b) == 0:
		return true
	case len(a) > 0 && a[0] == "**":
		if intersectChunks(a[1:], b) {
			return true
		}
		return len(b) > 0 && intersectChunks(a, b[1:])
	case len(b) > 0 && b[0] == "**":
		if intersectChunks(a, b[1:]) {
			return true
		}
		return len(a) > 0 && intersectChunks(a[1:], b)
	case len(a) == 0 || len(b) == 0:
		return false
	case a[0] == "*" || b[0] == "*" || a[0] == b[0]:
		return intersectChunks(a[1:], b[1:])
	}
	return false
}
