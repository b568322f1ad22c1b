package names

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRemapRule is returned by ParseRemapRule.
var ErrInvalidRemapRule = errors.New("invalid remap rule")

// Special remap sources that rename the node itself.
const (
	NodeNameKey      = "__node"
	NodeNameKeyAlias = "__name"
	NamespaceKey     = "__ns"
)

// RemapRule rewrites From to To. A rule with an empty NodeName applies to
// every node; otherwise only to the node whose original name matches.
type RemapRule struct {
	NodeName string
	From     string
	To       string
}

// AppliesTo reports whether r applies to the node originally named node.
func (r RemapRule) AppliesTo(node string) bool {
	return r.NodeName == "" || r.NodeName == node
}

func (r RemapRule) String() string {
	if r.NodeName == "" {
		return r.From + ":=" + r.To
	}
	return r.NodeName + ":" + r.From + ":=" + r.To
}

// ParseRemapRule parses "from:=to" or "node:from:=to".
func ParseRemapRule(s string) (RemapRule, error) {
	lhs, to, ok := strings.Cut(s, ":=")
	if !ok || strings.Contains(to, ":=") {
		return RemapRule{}, fmt.Errorf("%w %q: expected format 'from:=to' or 'node:from:=to'", ErrInvalidRemapRule, s)
	}
	parts := strings.Split(lhs, ":")
	switch len(parts) {
	case 1:
		return RemapRule{From: parts[0], To: to}, nil
	case 2:
		return RemapRule{NodeName: parts[0], From: parts[1], To: to}, nil
	}
	return RemapRule{}, fmt.Errorf("%w %q: expected format 'from:=to' or 'node:from:=to'", ErrInvalidRemapRule, s)
}

// ParseRemapRules parses every rule in rules.
func ParseRemapRules(rules []string) ([]RemapRule, error) {
	out := make([]RemapRule, 0, len(rules))
	for _, s := range rules {
		r, err := ParseRemapRule(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Resolver applies remap rules in two passes: the node's own name and
// namespace first, then every topic and service name of that node.
type Resolver struct {
	Rules []RemapRule
}

// NewResolver returns a resolver over rules.
func NewResolver(rules ...RemapRule) *Resolver {
	return &Resolver{Rules: rules}
}

// ResolveNode applies the __node and __ns rules that apply to the node
// originally named name. It returns the effective name and namespace. An
// empty namespace is the root.
func (r *Resolver) ResolveNode(name, ns string) (string, string, error) {
	if ns == "" {
		ns = "/"
	}
	effName, effNS := name, ns
	if r != nil {
		// The first matching rule wins for each of the name and namespace.
		var nameSet, nsSet bool
		for _, rule := range r.Rules {
			if !rule.AppliesTo(name) {
				continue
			}
			switch rule.From {
			case NodeNameKey, NodeNameKeyAlias:
				if !nameSet {
					effName, nameSet = rule.To, true
				}
			case NamespaceKey:
				if !nsSet {
					effNS, nsSet = rule.To, true
				}
			}
		}
	}
	if err := ValidateNode(effName); err != nil {
		return "", "", err
	}
	if err := ValidateNamespace(effNS); err != nil {
		return "", "", err
	}
	return effName, effNS, nil
}

// Resolve expands name against the node's effective namespace and name and
// returns the target of the first matching rule, or the expanded name when no
// rule matches. Rule applicability uses the original node name.
func (r *Resolver) Resolve(name, originalNode, effNS, effNode string) (string, error) {
	expanded, err := Expand(effNS, effNode, name)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}
	for _, rule := range r.Rules {
		if !rule.AppliesTo(originalNode) || isNodeRule(rule) {
			continue
		}
		from, err := Expand(effNS, effNode, rule.From)
		if err != nil {
			continue
		}
		if from != expanded {
			continue
		}
		return Expand(effNS, effNode, rule.To)
	}
	return expanded, nil
}

func isNodeRule(r RemapRule) bool {
	return r.From == NodeNameKey || r.From == NodeNameKeyAlias || r.From == NamespaceKey
}
