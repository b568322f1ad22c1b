package names

import "strings"

// FQN joins a namespace and a base node name. An empty namespace is the root.
func FQN(ns, name string) string {
	if ns == "" || ns == "/" {
		return "/" + name
	}
	return ns + "/" + name
}

// SplitFQN splits a fully qualified node name into namespace and base name.
// The namespace of a node at the root is "/".
func SplitFQN(fqn string) (ns, name string) {
	i := strings.LastIndexByte(fqn, '/')
	if i < 0 {
		return "/", fqn
	}
	if i == 0 {
		return "/", fqn[1:]
	}
	return fqn[:i], fqn[i+1:]
}

// Expand resolves a topic or service name against a node's namespace and
// name and returns the fully qualified result:
//
//	/abs        -> /abs
//	~           -> /ns/node
//	~/x         -> /ns/node/x
//	x           -> /ns/x (or /x in the root namespace)
//
// An empty ns is treated as the root namespace.
func Expand(ns, node, name string) (string, error) {
	if ns == "" {
		ns = "/"
	}
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	if err := ValidateNode(node); err != nil {
		return "", err
	}
	if err := ValidateTopic(name); err != nil {
		return "", err
	}

	var expanded string
	switch {
	case IsAbsolute(name):
		expanded = name
	case IsPrivate(name):
		expanded = FQN(ns, node) + name[1:]
	case ns == "/":
		expanded = "/" + name
	default:
		expanded = ns + "/" + name
	}
	if err := ValidateFullyQualified(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

// ExpandWithFQN is Expand for a node given by its fully qualified name.
func ExpandWithFQN(nodeFQN, name string) (string, error) {
	if err := ValidateFullyQualified(nodeFQN); err != nil {
		return "", err
	}
	ns, node := SplitFQN(nodeFQN)
	return Expand(ns, node, name)
}
