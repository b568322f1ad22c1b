// Package typedesc describes the structure of ROS 2 interface types and
// computes their RIHS01 type hashes.
//
// The data model mirrors type_description_interfaces: a Message holds the
// primary Individual description plus every type it references. Field order
// is significant and participates in the hash.
package typedesc

import "fmt"

// Field type ids from type_description_interfaces/msg/FieldType.
const (
	FieldTypeNotSet         uint8 = 0
	FieldTypeNestedType     uint8 = 1
	FieldTypeInt8           uint8 = 2
	FieldTypeUint8          uint8 = 3
	FieldTypeInt16          uint8 = 4
	FieldTypeUint16         uint8 = 5
	FieldTypeInt32          uint8 = 6
	FieldTypeUint32         uint8 = 7
	FieldTypeInt64          uint8 = 8
	FieldTypeUint64         uint8 = 9
	FieldTypeFloat          uint8 = 10
	FieldTypeDouble         uint8 = 11
	FieldTypeLongDouble     uint8 = 12
	FieldTypeChar           uint8 = 13
	FieldTypeWChar          uint8 = 14
	FieldTypeBoolean        uint8 = 15
	FieldTypeByte           uint8 = 16
	FieldTypeString         uint8 = 17
	FieldTypeWString        uint8 = 18
	FieldTypeFixedString    uint8 = 19
	FieldTypeFixedWString   uint8 = 20
	FieldTypeBoundedString  uint8 = 21
	FieldTypeBoundedWString uint8 = 22
)

// Offsets added to a base id to obtain its container variant.
const (
	arrayOffset           uint8 = 48
	boundedSequenceOffset uint8 = 96
	sequenceOffset        uint8 = 144
)

// Container ids for nested types, used often enough to name.
const (
	FieldTypeNestedTypeArray           = FieldTypeNestedType + arrayOffset
	FieldTypeNestedTypeBoundedSequence = FieldTypeNestedType + boundedSequenceOffset
	FieldTypeNestedTypeSequence        = FieldTypeNestedType + sequenceOffset
)

// FieldType is the type of a single field.
type FieldType struct {
	TypeID         uint8
	Capacity       uint64
	StringCapacity uint64
	NestedTypeName string
}

// Field is a named, typed member of an Individual description.
type Field struct {
	Name string
	Type FieldType
	// DefaultValue is carried for tooling only. It never enters the hash.
	DefaultValue string
}

// Individual describes one type without its dependencies.
type Individual struct {
	TypeName string
	Fields   []Field
}

// Message is a type description together with all referenced descriptions.
type Message struct {
	TypeDescription            Individual
	ReferencedTypeDescriptions []Individual
}

// Name renders a fully qualified interface name such as "std_msgs/msg/String".
func Name(pkg, kind, typ string) string {
	return fmt.Sprintf("%s/%s/%s", pkg, kind, typ)
}

// NewIndividual builds an Individual description.
func NewIndividual(typeName string, fields ...Field) Individual {
	return Individual{TypeName: typeName, Fields: fields}
}

// NewMessage builds a Message from a primary description and its references.
func NewMessage(primary Individual, refs ...Individual) Message {
	return Message{TypeDescription: primary, ReferencedTypeDescriptions: refs}
}

// NewField builds a field without a default value.
func NewField(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

// WithDefault builds a field that carries a default value.
func WithDefault(name string, t FieldType, def string) Field {
	return Field{Name: name, Type: t, DefaultValue: def}
}

// Primitive returns a scalar field type.
func Primitive(id uint8) FieldType {
	return FieldType{TypeID: id}
}

// Nested returns a field type referring to another message.
func Nested(typeName string) FieldType {
	return FieldType{TypeID: FieldTypeNestedType, NestedTypeName: typeName}
}

// NestedSequence returns an unbounded sequence of a nested message.
func NestedSequence(typeName string) FieldType {
	return FieldType{TypeID: FieldTypeNestedTypeSequence, NestedTypeName: typeName}
}

// NestedArray returns a fixed-size array of a nested message.
func NestedArray(typeName string, n uint64) FieldType {
	return FieldType{TypeID: FieldTypeNestedTypeArray, Capacity: n, NestedTypeName: typeName}
}

// NestedBoundedSequence returns a bounded sequence of a nested message.
func NestedBoundedSequence(typeName string, n uint64) FieldType {
	return FieldType{TypeID: FieldTypeNestedTypeBoundedSequence, Capacity: n, NestedTypeName: typeName}
}

// Array returns a fixed-size array of a primitive base type.
func Array(base uint8, n uint64) FieldType {
	return FieldType{TypeID: container(base, arrayOffset), Capacity: n}
}

// Sequence returns an unbounded sequence of a primitive base type.
func Sequence(base uint8) FieldType {
	return FieldType{TypeID: container(base, sequenceOffset)}
}

// BoundedSequence returns a bounded sequence of a primitive base type.
func BoundedSequence(base uint8, n uint64) FieldType {
	return FieldType{TypeID: container(base, boundedSequenceOffset), Capacity: n}
}

// BoundedString returns a string field limited to n characters.
func BoundedString(n uint64) FieldType {
	return FieldType{TypeID: FieldTypeBoundedString, StringCapacity: n}
}

// BoundedWString returns a wide string field limited to n characters.
func BoundedWString(n uint64) FieldType {
	return FieldType{TypeID: FieldTypeBoundedWString, StringCapacity: n}
}

// StringWithCapacity returns a string-like field type with an explicit capacity.
func StringWithCapacity(id uint8, n uint64) FieldType {
	return FieldType{TypeID: id, StringCapacity: n}
}

// container maps a base id onto its array or sequence variant. Only the
// primitive range (int8 through wstring) has container variants; anything
// else is returned unchanged.
func container(base, offset uint8) uint8 {
	if base < FieldTypeInt8 || base > FieldTypeWString {
		return base
	}
	return base + offset
}

// IsSequence reports whether id denotes a bounded or unbounded sequence.
func IsSequence(id uint8) bool {
	return inRange(id, boundedSequenceOffset) || inRange(id, sequenceOffset)
}

// IsArray reports whether id denotes a fixed-size array.
func IsArray(id uint8) bool {
	return inRange(id, arrayOffset)
}

func inRange(id, offset uint8) bool {
	return id >= offset+FieldTypeNestedType && id <= offset+FieldTypeWString
}
