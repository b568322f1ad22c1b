package main

import (
	"fmt"
	"strings"

	"github.com/jazi007/oxidros-sub001/typedesc"
)

// Type names of the builtin_interfaces types behind the Time and Duration kinds.
const (
	timeTypeName     = typedesc.TimeTypeName
	durationTypeName = "builtin_interfaces/msg/Duration"
)

func durationDescription() typedesc.Individual {
	return typedesc.NewIndividual(durationTypeName,
		typedesc.NewField("sec", typedesc.Primitive(typedesc.FieldTypeInt32)),
		typedesc.NewField("nanosec", typedesc.Primitive(typedesc.FieldTypeUint32)),
	)
}

var primitiveIDs = map[string]uint8{
	"Bool":    typedesc.FieldTypeBoolean,
	"Byte":    typedesc.FieldTypeByte,
	"Char":    typedesc.FieldTypeChar,
	"Int8":    typedesc.FieldTypeInt8,
	"UInt8":   typedesc.FieldTypeUint8,
	"Int16":   typedesc.FieldTypeInt16,
	"UInt16":  typedesc.FieldTypeUint16,
	"Int32":   typedesc.FieldTypeInt32,
	"UInt32":  typedesc.FieldTypeUint32,
	"Int64":   typedesc.FieldTypeInt64,
	"UInt64":  typedesc.FieldTypeUint64,
	"Float32": typedesc.FieldTypeFloat,
	"Float64": typedesc.FieldTypeDouble,
	"String":  typedesc.FieldTypeString,
}

// rosTypeName returns "pkg/kind/Name". Manifests may carry short full names
// ("std_msgs/String"), which are read as messages.
func rosTypeName(msg MessageDefinition, kind string) string {
	if parts := strings.Split(msg.FullName, "/"); len(parts) == 3 {
		return msg.FullName
	}
	return typedesc.Name(msg.Package, kind, msg.Name)
}

// registry resolves nested type references against every message and service
// member in a manifest.
type registry struct {
	defs map[string]MessageDefinition
}

func newRegistry(m CodegenManifest) *registry {
	r := &registry{defs: make(map[string]MessageDefinition)}
	for _, msg := range m.Messages {
		r.defs[rosTypeName(msg, "msg")] = msg
	}
	for _, srv := range m.Services {
		r.defs[rosTypeName(srv.Request, "srv")] = srv.Request
		r.defs[rosTypeName(srv.Response, "srv")] = srv.Response
	}
	return r
}

// nestedName returns the ROS type name a field refers to, or "" for
// primitive fields.
func nestedName(f FieldDefinition) (string, error) {
	switch f.FieldType.Kind {
	case "Time":
		return timeTypeName, nil
	case "Duration":
		return durationTypeName, nil
	case "Custom":
		if f.FieldType.Package == nil || f.FieldType.Name == nil {
			return "", fmt.Errorf("field %s: custom type without package or name", f.Name)
		}
		return typedesc.Name(*f.FieldType.Package, "msg", *f.FieldType.Name), nil
	}
	return "", nil
}

func fieldType(f FieldDefinition) (typedesc.FieldType, error) {
	nested, err := nestedName(f)
	if err != nil {
		return typedesc.FieldType{}, err
	}
	var size uint64
	if f.ArraySize != nil {
		size = uint64(*f.ArraySize)
	}
	if nested != "" {
		switch {
		case !f.IsArray:
			return typedesc.Nested(nested), nil
		case f.ArrayKind == "fixed":
			return typedesc.NestedArray(nested, size), nil
		case f.ArrayKind == "bounded":
			return typedesc.NestedBoundedSequence(nested, size), nil
		default:
			return typedesc.NestedSequence(nested), nil
		}
	}

	id, ok := primitiveIDs[f.FieldType.Kind]
	if !ok {
		return typedesc.FieldType{}, fmt.Errorf("field %s: unsupported kind %q", f.Name, f.FieldType.Kind)
	}
	switch {
	case !f.IsArray:
		return typedesc.Primitive(id), nil
	case f.ArrayKind == "fixed":
		if f.ArraySize == nil {
			return typedesc.FieldType{}, fmt.Errorf("field %s: fixed array without size", f.Name)
		}
		return typedesc.Array(id, size), nil
	case f.ArrayKind == "bounded":
		return typedesc.BoundedSequence(id, size), nil
	default:
		return typedesc.Sequence(id), nil
	}
}

func (r *registry) individual(name string, msg MessageDefinition) (typedesc.Individual, error) {
	fields := make([]typedesc.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		ft, err := fieldType(f)
		if err != nil {
			return typedesc.Individual{}, fmt.Errorf("%s: %w", name, err)
		}
		fields = append(fields, typedesc.NewField(f.Name, ft))
	}
	return typedesc.NewIndividual(name, fields...), nil
}

// describe builds the type description of msg, named name, with every type
// it references transitively.
func (r *registry) describe(name string, msg MessageDefinition) (typedesc.Message, error) {
	primary, err := r.individual(name, msg)
	if err != nil {
		return typedesc.Message{}, err
	}
	seen := map[string]bool{name: true}
	var refs []typedesc.Individual
	var visit func(MessageDefinition) error
	visit = func(m MessageDefinition) error {
		for _, f := range m.Fields {
			nested, err := nestedName(f)
			if err != nil {
				return err
			}
			if nested == "" || seen[nested] {
				continue
			}
			seen[nested] = true
			switch nested {
			case timeTypeName:
				refs = append(refs, typedesc.TimeDescription())
				continue
			case durationTypeName:
				refs = append(refs, durationDescription())
				continue
			}
			def, ok := r.defs[nested]
			if !ok {
				return fmt.Errorf("%s: unknown nested type %s", name, nested)
			}
			ind, err := r.individual(nested, def)
			if err != nil {
				return err
			}
			refs = append(refs, ind)
			if err := visit(def); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(msg); err != nil {
		return typedesc.Message{}, err
	}
	return typedesc.NewMessage(primary, refs...), nil
}
