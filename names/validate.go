// Package names validates, expands and remaps ROS 2 node, namespace, topic
// and service names.
package names

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidName matches every *NameError.
var ErrInvalidName = errors.New("invalid name")

// Kind identifies which grammar a name was checked against.
type Kind uint8

const (
	KindTopic Kind = iota
	KindNode
	KindNamespace
	KindSubstitution
)

func (k Kind) String() string {
	switch k {
	case KindTopic:
		return "topic"
	case KindNode:
		return "node"
	case KindNamespace:
		return "namespace"
	case KindSubstitution:
		return "substitution"
	}
	return "unknown"
}

// NameError reports why a name was rejected.
type NameError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Kind, e.Name, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidName) hold for every NameError.
func (e *NameError) Is(target error) bool {
	return target == ErrInvalidName
}

func invalid(kind Kind, name, format string, args ...any) error {
	return &NameError{Kind: kind, Name: name, Reason: fmt.Sprintf(format, args...)}
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func isTopicChar(c byte) bool {
	return isNameChar(c) || c == '/'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// ValidateTopic checks a topic or service name, which may be relative,
// absolute or private and may contain {substitutions}.
func ValidateTopic(name string) error {
	if name == "" {
		return invalid(KindTopic, name, "name must not be empty")
	}
	i := 0
	switch c := name[0]; {
	case c == '~':
		if len(name) > 1 && name[1] != '/' {
			return invalid(KindTopic, name, "tilde (~) must be followed by a forward slash (/)")
		}
		i = 1
	case c == '/':
		i = 1
	case c == '{':
	case isDigit(c):
		return invalid(KindTopic, name, "name must not start with a numeric character")
	case !isAlpha(c) && c != '_':
		return invalid(KindTopic, name, "invalid character %q at position 0", c)
	}

	depth := 0
	var prev byte
	if i > 0 {
		prev = name[i-1]
	}
	for ; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return invalid(KindTopic, name, "unbalanced curly braces: unexpected '}'")
			}
			depth--
		case c == '~':
			return invalid(KindTopic, name, "tilde (~) may only appear at the beginning of a name")
		case depth > 0:
			if !isNameChar(c) {
				return invalid(KindTopic, name, "invalid character %q inside substitution at position %d", c, i)
			}
		case !isTopicChar(c):
			return invalid(KindTopic, name, "invalid character %q at position %d", c, i)
		}
		if c == '/' && prev == '/' {
			return invalid(KindTopic, name, "name must not contain repeated forward slashes (//)")
		}
		if c == '_' && prev == '_' {
			return invalid(KindTopic, name, "name must not contain repeated underscores (__)")
		}
		if prev == '/' && isDigit(c) {
			return invalid(KindTopic, name, "token after '/' must not start with a numeric character at position %d", i)
		}
		prev = c
	}
	if depth != 0 {
		return invalid(KindTopic, name, "unbalanced curly braces: missing '}'")
	}
	if strings.HasSuffix(name, "/") {
		return invalid(KindTopic, name, "name must not end with a forward slash (/)")
	}
	return nil
}

// ValidateNode checks a base node name.
func ValidateNode(name string) error {
	if name == "" {
		return invalid(KindNode, name, "name must not be empty")
	}
	if isDigit(name[0]) {
		return invalid(KindNode, name, "name must not start with a numeric character")
	}
	var prev byte
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '/':
			return invalid(KindNode, name, "node name must not contain forward slash (/)")
		case c == '~':
			return invalid(KindNode, name, "node name must not contain tilde (~)")
		case c == '{' || c == '}':
			return invalid(KindNode, name, "node name must not contain curly braces")
		case !isNameChar(c):
			return invalid(KindNode, name, "invalid character %q at position %d", c, i)
		case c == '_' && prev == '_':
			return invalid(KindNode, name, "node name must not contain repeated underscores (__)")
		}
		prev = c
	}
	return nil
}

// ValidateNamespace checks an absolute node namespace. "/" is valid.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return invalid(KindNamespace, ns, "name must not be empty")
	}
	if ns[0] != '/' {
		return invalid(KindNamespace, ns, "namespace must start with a forward slash (/)")
	}
	if ns == "/" {
		return nil
	}
	if isDigit(ns[1]) {
		return invalid(KindNamespace, ns, "namespace token must not start with a numeric character")
	}
	prev := byte('/')
	for i := 1; i < len(ns); i++ {
		c := ns[i]
		switch {
		case !isTopicChar(c):
			return invalid(KindNamespace, ns, "invalid character %q at position %d", c, i)
		case c == '/' && prev == '/':
			return invalid(KindNamespace, ns, "namespace must not contain repeated forward slashes (//)")
		case c == '_' && prev == '_':
			return invalid(KindNamespace, ns, "namespace must not contain repeated underscores (__)")
		case prev == '/' && isDigit(c):
			return invalid(KindNamespace, ns, "namespace token after '/' must not start with a numeric character at position %d", i)
		}
		prev = c
	}
	if strings.HasSuffix(ns, "/") {
		return invalid(KindNamespace, ns, "namespace must not end with a forward slash (/)")
	}
	return nil
}

// ValidateSubstitution checks the content of a {substitution}.
func ValidateSubstitution(name string) error {
	if name == "" {
		return invalid(KindSubstitution, name, "name must not be empty")
	}
	if isDigit(name[0]) {
		return invalid(KindSubstitution, name, "name must not start with a numeric character")
	}
	for i := 0; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return invalid(KindSubstitution, name, "invalid character %q at position %d", name[i], i)
		}
	}
	return nil
}

// ValidateFullyQualified checks an expanded topic name: absolute and free of
// private or substitution syntax.
func ValidateFullyQualified(name string) error {
	switch {
	case name == "":
		return invalid(KindTopic, name, "fully qualified name must not be empty")
	case name[0] != '/':
		return invalid(KindTopic, name, "fully qualified name must start with a forward slash (/)")
	case strings.Contains(name, "~"):
		return invalid(KindTopic, name, "fully qualified name must not contain tilde (~)")
	case strings.ContainsAny(name, "{}"):
		return invalid(KindTopic, name, "fully qualified name must not contain curly braces ({})")
	}
	return ValidateTopic(name)
}

// IsAbsolute reports whether name starts with "/".
func IsAbsolute(name string) bool {
	return strings.HasPrefix(name, "/")
}

// IsPrivate reports whether name starts with "~".
func IsPrivate(name string) bool {
	return strings.HasPrefix(name, "~")
}

// IsRelative reports whether name is neither absolute nor private.
func IsRelative(name string) bool {
	return name != "" && !IsAbsolute(name) && !IsPrivate(name)
}

// IsHidden reports whether any token of name starts with an underscore.
func IsHidden(name string) bool {
	for _, tok := range strings.Split(name, "/") {
		if strings.HasPrefix(tok, "_") {
			return true
		}
	}
	return false
}
