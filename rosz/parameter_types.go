package rosz

import (
	"fmt"

	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

// ParameterType is the rcl_interfaces/msg/ParameterType code of a value.
type ParameterType uint8

const (
	ParameterNotSet ParameterType = iota
	ParameterBool
	ParameterInteger
	ParameterDouble
	ParameterString
	ParameterByteArray
	ParameterBoolArray
	ParameterIntegerArray
	ParameterDoubleArray
	ParameterStringArray
)

var parameterTypeNames = [...]string{
	"not set", "bool", "integer", "double", "string",
	"byte array", "bool array", "integer array", "double array", "string array",
}

func (t ParameterType) String() string {
	if int(t) < len(parameterTypeNames) {
		return parameterTypeNames[t]
	}
	return fmt.Sprintf("ParameterType(%d)", uint8(t))
}

// ParameterValue mirrors rcl_interfaces/msg/ParameterValue. Only the field
// selected by Type is meaningful.
type ParameterValue struct {
	Type              ParameterType
	BoolValue         bool
	IntegerValue      int64
	DoubleValue       float64
	StringValue       string
	ByteArrayValue    []byte
	BoolArrayValue    []bool
	IntegerArrayValue []int64
	DoubleArrayValue  []float64
	StringArrayValue  []string
}

func ParamBool(v bool) ParameterValue { return ParameterValue{Type: ParameterBool, BoolValue: v} }
func ParamInt(v int64) ParameterValue { return ParameterValue{Type: ParameterInteger, IntegerValue: v} }
func ParamDouble(v float64) ParameterValue {
	return ParameterValue{Type: ParameterDouble, DoubleValue: v}
}
func ParamString(v string) ParameterValue {
	return ParameterValue{Type: ParameterString, StringValue: v}
}
func ParamBytes(v []byte) ParameterValue {
	return ParameterValue{Type: ParameterByteArray, ByteArrayValue: v}
}
func ParamBoolArray(v []bool) ParameterValue {
	return ParameterValue{Type: ParameterBoolArray, BoolArrayValue: v}
}
func ParamIntArray(v []int64) ParameterValue {
	return ParameterValue{Type: ParameterIntegerArray, IntegerArrayValue: v}
}
func ParamDoubleArray(v []float64) ParameterValue {
	return ParameterValue{Type: ParameterDoubleArray, DoubleArrayValue: v}
}
func ParamStringArray(v []string) ParameterValue {
	return ParameterValue{Type: ParameterStringArray, StringArrayValue: v}
}

// IsSet reports whether v holds a value.
func (v ParameterValue) IsSet() bool { return v.Type != ParameterNotSet }

// Value returns the selected field as a Go value, or nil when not set.
func (v ParameterValue) Value() any {
	switch v.Type {
	case ParameterBool:
		return v.BoolValue
	case ParameterInteger:
		return v.IntegerValue
	case ParameterDouble:
		return v.DoubleValue
	case ParameterString:
		return v.StringValue
	case ParameterByteArray:
		return v.ByteArrayValue
	case ParameterBoolArray:
		return v.BoolArrayValue
	case ParameterIntegerArray:
		return v.IntegerArrayValue
	case ParameterDoubleArray:
		return v.DoubleArrayValue
	case ParameterStringArray:
		return v.StringArrayValue
	}
	return nil
}

func (v ParameterValue) String() string {
	if !v.IsSet() {
		return "NotSet"
	}
	return fmt.Sprint(v.Value())
}

// Parameter mirrors rcl_interfaces/msg/Parameter.
type Parameter struct {
	Name  string
	Value ParameterValue
}

// FloatingPointRange mirrors rcl_interfaces/msg/FloatingPointRange.
type FloatingPointRange struct {
	FromValue float64
	ToValue   float64
	Step      float64
}

// IntegerRange mirrors rcl_interfaces/msg/IntegerRange.
type IntegerRange struct {
	FromValue int64
	ToValue   int64
	Step      uint64
}

// ParameterDescriptor mirrors rcl_interfaces/msg/ParameterDescriptor. The
// ranges hold at most one element.
type ParameterDescriptor struct {
	Name                  string
	Type                  ParameterType
	Description           string
	AdditionalConstraints string
	ReadOnly              bool
	DynamicTyping         bool
	FloatingPointRange    []FloatingPointRange
	IntegerRange          []IntegerRange
}

// SetParametersResult mirrors rcl_interfaces/msg/SetParametersResult.
type SetParametersResult struct {
	Successful bool
	Reason     string
}

// ListParametersResult mirrors rcl_interfaces/msg/ListParametersResult.
type ListParametersResult struct {
	Names    []string
	Prefixes []string
}

type ListParametersRequest struct {
	Prefixes []string
	Depth    uint64
}

type ListParametersResponse struct {
	Result ListParametersResult
}

type GetParametersRequest struct {
	Names []string
}

type GetParametersResponse struct {
	Values []ParameterValue
}

type SetParametersRequest struct {
	Parameters []Parameter
}

type SetParametersResponse struct {
	Results []SetParametersResult
}

type SetParametersAtomicallyRequest struct {
	Parameters []Parameter
}

type SetParametersAtomicallyResponse struct {
	Result SetParametersResult
}

type DescribeParametersRequest struct {
	Names []string
}

type DescribeParametersResponse struct {
	Descriptors []ParameterDescriptor
}

type GetParameterTypesRequest struct {
	Names []string
}

type GetParameterTypesResponse struct {
	Types []ParameterType
}

// ListParametersDepthRecursive lists every level below the prefixes.
const ListParametersDepthRecursive uint64 = 0

const rcl = "rcl_interfaces"

var (
	descParameterValue = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "ParameterValue"),
		typedesc.NewField("type", typedesc.Primitive(typedesc.FieldTypeUint8)),
		typedesc.NewField("bool_value", typedesc.Primitive(typedesc.FieldTypeBoolean)),
		typedesc.NewField("integer_value", typedesc.Primitive(typedesc.FieldTypeInt64)),
		typedesc.NewField("double_value", typedesc.Primitive(typedesc.FieldTypeDouble)),
		typedesc.NewField("string_value", typedesc.Primitive(typedesc.FieldTypeString)),
		typedesc.NewField("byte_array_value", typedesc.Sequence(typedesc.FieldTypeByte)),
		typedesc.NewField("bool_array_value", typedesc.Sequence(typedesc.FieldTypeBoolean)),
		typedesc.NewField("integer_array_value", typedesc.Sequence(typedesc.FieldTypeInt64)),
		typedesc.NewField("double_array_value", typedesc.Sequence(typedesc.FieldTypeDouble)),
		typedesc.NewField("string_array_value", typedesc.Sequence(typedesc.FieldTypeString)),
	)
	descParameter = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "Parameter"),
		typedesc.NewField("name", typedesc.Primitive(typedesc.FieldTypeString)),
		typedesc.NewField("value", typedesc.Nested(descParameterValue.TypeName)),
	)
	descFloatingPointRange = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "FloatingPointRange"),
		typedesc.NewField("from_value", typedesc.Primitive(typedesc.FieldTypeDouble)),
		typedesc.NewField("to_value", typedesc.Primitive(typedesc.FieldTypeDouble)),
		typedesc.NewField("step", typedesc.Primitive(typedesc.FieldTypeDouble)),
	)
	descIntegerRange = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "IntegerRange"),
		typedesc.NewField("from_value", typedesc.Primitive(typedesc.FieldTypeInt64)),
		typedesc.NewField("to_value", typedesc.Primitive(typedesc.FieldTypeInt64)),
		typedesc.NewField("step", typedesc.Primitive(typedesc.FieldTypeUint64)),
	)
	descParameterDescriptor = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "ParameterDescriptor"),
		typedesc.NewField("name", typedesc.Primitive(typedesc.FieldTypeString)),
		typedesc.NewField("type", typedesc.Primitive(typedesc.FieldTypeUint8)),
		typedesc.NewField("description", typedesc.Primitive(typedesc.FieldTypeString)),
		typedesc.NewField("additional_constraints", typedesc.Primitive(typedesc.FieldTypeString)),
		typedesc.NewField("read_only", typedesc.Primitive(typedesc.FieldTypeBoolean)),
		typedesc.NewField("dynamic_typing", typedesc.Primitive(typedesc.FieldTypeBoolean)),
		typedesc.NewField("floating_point_range", typedesc.NestedBoundedSequence(descFloatingPointRange.TypeName, 1)),
		typedesc.NewField("integer_range", typedesc.NestedBoundedSequence(descIntegerRange.TypeName, 1)),
	)
	descSetParametersResult = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "SetParametersResult"),
		typedesc.NewField("successful", typedesc.Primitive(typedesc.FieldTypeBoolean)),
		typedesc.NewField("reason", typedesc.Primitive(typedesc.FieldTypeString)),
	)
	descListParametersResult = typedesc.NewIndividual(typedesc.Name(rcl, "msg", "ListParametersResult"),
		typedesc.NewField("names", typedesc.Sequence(typedesc.FieldTypeString)),
		typedesc.NewField("prefixes", typedesc.Sequence(typedesc.FieldTypeString)),
	)
	descNames = typedesc.NewField("names", typedesc.Sequence(typedesc.FieldTypeString))
)

// parameterService is the metadata of one rcl_interfaces service.
type parameterService struct {
	srv          ServiceType
	request      typedesc.Message
	response     typedesc.Message
	requestHash  string
	responseHash string
}

func newParameterService(name string, req, resp typedesc.Message) parameterService {
	full := typedesc.Name(rcl, "srv", name)
	return parameterService{
		srv:          NewServiceType(full, req, resp),
		request:      req,
		response:     resp,
		requestHash:  typedesc.Hash(req),
		responseHash: typedesc.Hash(resp),
	}
}

func srvMessage(service, suffix string, refs []typedesc.Individual, fields ...typedesc.Field) typedesc.Message {
	return typedesc.NewMessage(typedesc.NewIndividual(typedesc.Name(rcl, "srv", service)+suffix, fields...), refs...)
}

var (
	listParametersSrv = newParameterService("ListParameters",
		srvMessage("ListParameters", "_Request", nil,
			typedesc.NewField("prefixes", typedesc.Sequence(typedesc.FieldTypeString)),
			typedesc.NewField("depth", typedesc.Primitive(typedesc.FieldTypeUint64))),
		srvMessage("ListParameters", "_Response", []typedesc.Individual{descListParametersResult},
			typedesc.NewField("result", typedesc.Nested(descListParametersResult.TypeName))))

	getParametersSrv = newParameterService("GetParameters",
		srvMessage("GetParameters", "_Request", nil, descNames),
		srvMessage("GetParameters", "_Response", []typedesc.Individual{descParameterValue},
			typedesc.NewField("values", typedesc.NestedSequence(descParameterValue.TypeName))))

	setParametersSrv = newParameterService("SetParameters",
		srvMessage("SetParameters", "_Request", []typedesc.Individual{descParameter, descParameterValue},
			typedesc.NewField("parameters", typedesc.NestedSequence(descParameter.TypeName))),
		srvMessage("SetParameters", "_Response", []typedesc.Individual{descSetParametersResult},
			typedesc.NewField("results", typedesc.NestedSequence(descSetParametersResult.TypeName))))

	setParametersAtomicallySrv = newParameterService("SetParametersAtomically",
		srvMessage("SetParametersAtomically", "_Request", []typedesc.Individual{descParameter, descParameterValue},
			typedesc.NewField("parameters", typedesc.NestedSequence(descParameter.TypeName))),
		srvMessage("SetParametersAtomically", "_Response", []typedesc.Individual{descSetParametersResult},
			typedesc.NewField("result", typedesc.Nested(descSetParametersResult.TypeName))))

	describeParametersSrv = newParameterService("DescribeParameters",
		srvMessage("DescribeParameters", "_Request", nil, descNames),
		srvMessage("DescribeParameters", "_Response",
			[]typedesc.Individual{descParameterDescriptor, descFloatingPointRange, descIntegerRange},
			typedesc.NewField("descriptors", typedesc.NestedSequence(descParameterDescriptor.TypeName))))

	getParameterTypesSrv = newParameterService("GetParameterTypes",
		srvMessage("GetParameterTypes", "_Request", nil, descNames),
		srvMessage("GetParameterTypes", "_Response", nil,
			typedesc.NewField("types", typedesc.Sequence(typedesc.FieldTypeUint8))))
)

// Service types of the parameter services.
var (
	ListParametersService          = listParametersSrv.srv
	GetParametersService           = getParametersSrv.srv
	SetParametersService           = setParametersSrv.srv
	SetParametersAtomicallyService = setParametersAtomicallySrv.srv
	DescribeParametersService      = describeParametersSrv.srv
	GetParameterTypesService       = getParameterTypesSrv.srv
)

func (*ListParametersRequest) TypeName() string { return listParametersSrv.request.TypeDescription.TypeName }
func (*ListParametersRequest) TypeHash() string { return listParametersSrv.requestHash }
func (m *ListParametersRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *ListParametersRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*ListParametersRequest) TypeDescription() typedesc.Message { return listParametersSrv.request }

func (*ListParametersResponse) TypeName() string { return listParametersSrv.response.TypeDescription.TypeName }
func (*ListParametersResponse) TypeHash() string { return listParametersSrv.responseHash }
func (m *ListParametersResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *ListParametersResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*ListParametersResponse) TypeDescription() typedesc.Message { return listParametersSrv.response }

func (*GetParametersRequest) TypeName() string { return getParametersSrv.request.TypeDescription.TypeName }
func (*GetParametersRequest) TypeHash() string { return getParametersSrv.requestHash }
func (m *GetParametersRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *GetParametersRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*GetParametersRequest) TypeDescription() typedesc.Message { return getParametersSrv.request }

func (*GetParametersResponse) TypeName() string { return getParametersSrv.response.TypeDescription.TypeName }
func (*GetParametersResponse) TypeHash() string { return getParametersSrv.responseHash }
func (m *GetParametersResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *GetParametersResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*GetParametersResponse) TypeDescription() typedesc.Message { return getParametersSrv.response }

func (*SetParametersRequest) TypeName() string { return setParametersSrv.request.TypeDescription.TypeName }
func (*SetParametersRequest) TypeHash() string { return setParametersSrv.requestHash }
func (m *SetParametersRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *SetParametersRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*SetParametersRequest) TypeDescription() typedesc.Message { return setParametersSrv.request }

func (*SetParametersResponse) TypeName() string { return setParametersSrv.response.TypeDescription.TypeName }
func (*SetParametersResponse) TypeHash() string { return setParametersSrv.responseHash }
func (m *SetParametersResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *SetParametersResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*SetParametersResponse) TypeDescription() typedesc.Message { return setParametersSrv.response }

func (*SetParametersAtomicallyRequest) TypeName() string {
	return setParametersAtomicallySrv.request.TypeDescription.TypeName
}
func (*SetParametersAtomicallyRequest) TypeHash() string {
	return setParametersAtomicallySrv.requestHash
}
func (m *SetParametersAtomicallyRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *SetParametersAtomicallyRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*SetParametersAtomicallyRequest) TypeDescription() typedesc.Message {
	return setParametersAtomicallySrv.request
}

func (*SetParametersAtomicallyResponse) TypeName() string {
	return setParametersAtomicallySrv.response.TypeDescription.TypeName
}
func (*SetParametersAtomicallyResponse) TypeHash() string {
	return setParametersAtomicallySrv.responseHash
}
func (m *SetParametersAtomicallyResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *SetParametersAtomicallyResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*SetParametersAtomicallyResponse) TypeDescription() typedesc.Message {
	return setParametersAtomicallySrv.response
}

func (*DescribeParametersRequest) TypeName() string {
	return describeParametersSrv.request.TypeDescription.TypeName
}
func (*DescribeParametersRequest) TypeHash() string { return describeParametersSrv.requestHash }
func (m *DescribeParametersRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *DescribeParametersRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*DescribeParametersRequest) TypeDescription() typedesc.Message {
	return describeParametersSrv.request
}

func (*DescribeParametersResponse) TypeName() string {
	return describeParametersSrv.response.TypeDescription.TypeName
}
func (*DescribeParametersResponse) TypeHash() string {
	return describeParametersSrv.responseHash
}
func (m *DescribeParametersResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *DescribeParametersResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*DescribeParametersResponse) TypeDescription() typedesc.Message {
	return describeParametersSrv.response
}

func (*GetParameterTypesRequest) TypeName() string {
	return getParameterTypesSrv.request.TypeDescription.TypeName
}
func (*GetParameterTypesRequest) TypeHash() string { return getParameterTypesSrv.requestHash }
func (m *GetParameterTypesRequest) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *GetParameterTypesRequest) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*GetParameterTypesRequest) TypeDescription() typedesc.Message { return getParameterTypesSrv.request }

func (*GetParameterTypesResponse) TypeName() string {
	return getParameterTypesSrv.response.TypeDescription.TypeName
}
func (*GetParameterTypesResponse) TypeHash() string {
	return getParameterTypesSrv.responseHash
}
func (m *GetParameterTypesResponse) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }
func (m *GetParameterTypesResponse) DeserializeCDR(b []byte) error { return cdr.Unmarshal(b, m) }
func (*GetParameterTypesResponse) TypeDescription() typedesc.Message {
	return getParameterTypesSrv.response
}
