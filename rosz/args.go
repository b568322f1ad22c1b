package rosz

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jazi007/oxidros-sub001/names"
)

// Command line markers of ROS arguments.
const (
	RosArgsFlag = "--ros-args"
	RosArgsEnd  = "--"
)

// ParamAssignment overrides one parameter. Node is a node name or a node
// pattern; empty applies to every node.
type ParamAssignment struct {
	Node  string
	Name  string
	Value ParameterValue
}

// AppliesTo reports whether a applies to the node originally named name with
// fully qualified name fqn.
func (a ParamAssignment) AppliesTo(name, fqn string) bool {
	return a.Node == "" || matchNodePattern(a.Node, name) || matchNodePattern(a.Node, fqn)
}

// Args is the parsed form of a command line.
type Args struct {
	Remaps     []names.RemapRule
	Params     []ParamAssignment
	ParamFiles []string
	Enclave    string
	LogLevels  []string
	// User holds every argument outside the ROS sections.
	User []string
}

// ignoredFlags are accepted for compatibility and take no value.
var ignoredFlags = map[string]bool{
	"--enable-rosout-logs":        true,
	"--disable-rosout-logs":       true,
	"--enable-stdout-logs":        true,
	"--disable-stdout-logs":       true,
	"--enable-external-lib-logs":  true,
	"--disable-external-lib-logs": true,
}

// ParseArgs parses a command line without the program name. ROS arguments
// appear in one or more sections opened by --ros-args and closed by "--" or
// the end of the line.
//
//	--ros-args -r chatter:=/talk -p rate:=10 --params-file p.yaml -e /secure --log-level debug --
func ParseArgs(args []string) (*Args, error) {
	out := &Args{}
	inROS := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == RosArgsFlag {
			inROS = true
			continue
		}
		if !inROS {
			out.User = append(out.User, arg)
			continue
		}
		if arg == RosArgsEnd {
			inROS = false
			continue
		}
		if ignoredFlags[arg] {
			continue
		}

		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", NewRoszError(ErrorCodeInvalidConfig, fmt.Sprintf("%s requires a value", arg))
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "-r", "--remap":
			v, err := value()
			if err != nil {
				return nil, err
			}
			rule, err := names.ParseRemapRule(v)
			if err != nil {
				return nil, wrapError(ErrorCodeInvalidConfig, err, "invalid remap argument")
			}
			out.Remaps = append(out.Remaps, rule)
		case "-p", "--param":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p, err := parseParamAssignment(v)
			if err != nil {
				return nil, err
			}
			out.Params = append(out.Params, p)
		case "--params-file":
			v, err := value()
			if err != nil {
				return nil, err
			}
			out.ParamFiles = append(out.ParamFiles, v)
		case "-e", "--enclave":
			v, err := value()
			if err != nil {
				return nil, err
			}
			out.Enclave = v
		case "--log-level":
			v, err := value()
			if err != nil {
				return nil, err
			}
			out.LogLevels = append(out.LogLevels, v)
		default:
			return nil, NewRoszError(ErrorCodeInvalidConfig, fmt.Sprintf("unknown ROS argument %q", arg))
		}
	}
	return out, nil
}

// LogLevel returns the last global --log-level, ignoring per-logger
// "name:=level" entries.
func (a *Args) LogLevel() string {
	for i := len(a.LogLevels) - 1; i >= 0; i-- {
		if !strings.Contains(a.LogLevels[i], ":=") {
			return a.LogLevels[i]
		}
	}
	return ""
}

// parseParamAssignment parses "name:=value" or "node:name:=value".
func parseParamAssignment(s string) (ParamAssignment, error) {
	lhs, raw, ok := strings.Cut(s, ":=")
	if !ok || lhs == "" {
		return ParamAssignment{}, NewRoszError(ErrorCodeInvalidConfig,
			fmt.Sprintf("invalid parameter argument %q: expected 'name:=value' or 'node:name:=value'", s))
	}
	var p ParamAssignment
	if node, name, ok := strings.Cut(lhs, ":"); ok {
		p.Node, p.Name = node, name
	} else {
		p.Name = lhs
	}
	if p.Name == "" {
		return ParamAssignment{}, NewRoszError(ErrorCodeInvalidConfig, fmt.Sprintf("empty parameter name in %q", s))
	}
	v, err := ParseParameterValue(raw)
	if err != nil {
		return ParamAssignment{}, wrapError(ErrorCodeInvalidConfig, err, "invalid value for parameter %s", p.Name)
	}
	p.Value = v
	return p, nil
}

// ParseParameterValue interprets s as a YAML scalar or flow sequence:
// "true" is a bool, "3" an integer, "2.5" a double, "[1, 2]" an integer
// array, anything else a string.
func ParseParameterValue(s string) (ParameterValue, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return ParameterValue{}, err
	}
	if len(doc.Content) == 0 {
		return ParamString(s), nil
	}
	return valueFromYAML(doc.Content[0])
}

func valueFromYAML(n *yaml.Node) (ParameterValue, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	case yaml.SequenceNode:
		return arrayFromYAML(n)
	case yaml.AliasNode:
		return valueFromYAML(n.Alias)
	}
	return ParameterValue{}, fmt.Errorf("line %d: mappings are not parameter values", n.Line)
}

func scalarFromYAML(n *yaml.Node) (ParameterValue, error) {
	switch n.ShortTag() {
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return ParameterValue{}, err
		}
		return ParamBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return ParameterValue{}, err
		}
		return ParamInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return ParameterValue{}, err
		}
		return ParamDouble(f), nil
	case "!!null":
		return ParameterValue{}, fmt.Errorf("line %d: null is not a parameter value", n.Line)
	}
	return ParamString(n.Value), nil
}

// arrayFromYAML requires homogeneous elements. Integers mixed into a double
// array are promoted.
func arrayFromYAML(n *yaml.Node) (ParameterValue, error) {
	elems := make([]ParameterValue, 0, len(n.Content))
	kind := ParameterNotSet
	for _, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return ParameterValue{}, fmt.Errorf("line %d: nested arrays are not parameter values", c.Line)
		}
		v, err := scalarFromYAML(c)
		if err != nil {
			return ParameterValue{}, err
		}
		switch {
		case kind == ParameterNotSet:
			kind = v.Type
		case kind == v.Type:
		case kind == ParameterInteger && v.Type == ParameterDouble:
			kind = ParameterDouble
		case kind == ParameterDouble && v.Type == ParameterInteger:
		default:
			return ParameterValue{}, fmt.Errorf("line %d: mixed %s and %s array elements", c.Line, kind, v.Type)
		}
		elems = append(elems, v)
	}

	switch kind {
	case ParameterBool:
		out := make([]bool, len(elems))
		for i, e := range elems {
			out[i] = e.BoolValue
		}
		return ParamBoolArray(out), nil
	case ParameterInteger:
		out := make([]int64, len(elems))
		for i, e := range elems {
			out[i] = e.IntegerValue
		}
		return ParamIntArray(out), nil
	case ParameterDouble:
		out := make([]float64, len(elems))
		for i, e := range elems {
			if e.Type == ParameterInteger {
				out[i] = float64(e.IntegerValue)
			} else {
				out[i] = e.DoubleValue
			}
		}
		return ParamDoubleArray(out), nil
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.StringValue
	}
	return ParamStringArray(out), nil
}

// paramsKey is the mapping key that holds a node's parameters.
const paramsKey = "ros__parameters"

// LoadParamFile reads a parameter file:
//
//	/**:
//	  ros__parameters:
//	    use_sim_time: false
//	talker:
//	  ros__parameters:
//	    rate: 10
//	    limits: {min: 0.5, max: 2.0}
//
// Nested mappings below ros__parameters become dotted names ("limits.min").
func LoadParamFile(path string) ([]ParamAssignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "failed to read parameter file %s", path)
	}
	params, err := parseParamFile(data)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "failed to parse parameter file %s", path)
	}
	return params, nil
}

func parseParamFile(data []byte) ([]ParamAssignment, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	var out []ParamAssignment
	if err := walkParamNodes(doc.Content[0], "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// walkParamNodes descends through node and namespace keys until it reaches a
// ros__parameters mapping.
func walkParamNodes(n *yaml.Node, pattern string, out *[]ParamAssignment) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of node names", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if key == paramsKey {
			if pattern == "" {
				return fmt.Errorf("line %d: %s outside a node", n.Content[i].Line, paramsKey)
			}
			if err := flattenParams(val, pattern, "", out); err != nil {
				return err
			}
			continue
		}
		next := key
		if pattern != "" {
			next = strings.TrimSuffix(pattern, "/") + "/" + strings.TrimPrefix(key, "/")
		}
		if err := walkParamNodes(val, next, out); err != nil {
			return err
		}
	}
	return nil
}

func flattenParams(n *yaml.Node, pattern, prefix string, out *[]ParamAssignment) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %s must be a mapping", n.Line, paramsKey)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		if prefix != "" {
			name = prefix + "." + name
		}
		val := n.Content[i+1]
		if val.Kind == yaml.MappingNode {
			if err := flattenParams(val, pattern, name, out); err != nil {
				return err
			}
			continue
		}
		v, err := valueFromYAML(val)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		*out = append(*out, ParamAssignment{Node: pattern, Name: name, Value: v})
	}
	return nil
}

// matchNodePattern matches a node name or fully qualified name against a
// pattern where "*" matches one name token and "**" any number of tokens.
// Leading slashes are not significant.
func matchNodePattern(pattern, name string) bool {
	return matchTokens(splitTokens(pattern), splitTokens(name))
}

func splitTokens(s string) []string {
	parts := strings.Split(s, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchTokens(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchTokens(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 || (pat[0] != "*" && pat[0] != name[0]) {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

// parameterOverrides folds assignments into the final value per name for one
// node. Later assignments win.
func parameterOverrides(assignments []ParamAssignment, name, fqn string) map[string]ParameterValue {
	out := make(map[string]ParameterValue)
	for _, a := range assignments {
		if a.AppliesTo(name, fqn) {
			out[a.Name] = a.Value
		}
	}
	return out
}
