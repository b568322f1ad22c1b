package rosz

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/transport"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

// newTestContext builds a context on bus, closed with the test.
func newTestContext(t *testing.T, bus *transport.MemoryBus, opts ...func(*ContextBuilder)) *Context {
	t.Helper()
	b := NewContext().WithMemoryBus(bus)
	for _, o := range opts {
		o(b)
	}
	ctx, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

func newTestNode(t *testing.T, ctx *Context, name string) *Node {
	t.Helper()
	node, err := ctx.CreateNode(name).Build()
	require.NoError(t, err)
	return node
}

// testString mirrors std_msgs/msg/String.
type testString struct {
	Data string
}

var (
	testStringDesc = typedesc.NewMessage(typedesc.NewIndividual(typedesc.Name("std_msgs", "msg", "String"),
		typedesc.NewField("data", typedesc.Primitive(typedesc.FieldTypeString))))
	testStringHash = typedesc.Hash(testStringDesc)
)

func (*testString) TypeName() string                   { return "std_msgs/msg/String" }
func (*testString) TypeHash() string                   { return testStringHash }
func (m *testString) SerializeCDR() ([]byte, error)    { return cdr.Marshal(m) }
func (m *testString) DeserializeCDR(data []byte) error { return cdr.Unmarshal(data, m) }
func (*testString) TypeDescription() typedesc.Message  { return testStringDesc }

// testAddRequest and testAddResponse mirror example_interfaces/srv/AddTwoInts.
type testAddRequest struct {
	A, B int64
}

type testAddResponse struct {
	Sum int64
}

var (
	testAddRequestDesc = typedesc.NewMessage(typedesc.NewIndividual(
		typedesc.Name("example_interfaces", "srv", "AddTwoInts")+"_Request",
		typedesc.NewField("a", typedesc.Primitive(typedesc.FieldTypeInt64)),
		typedesc.NewField("b", typedesc.Primitive(typedesc.FieldTypeInt64))))
	testAddResponseDesc = typedesc.NewMessage(typedesc.NewIndividual(
		typedesc.Name("example_interfaces", "srv", "AddTwoInts")+"_Response",
		typedesc.NewField("sum", typedesc.Primitive(typedesc.FieldTypeInt64))))
	testAddService = NewServiceType("example_interfaces/srv/AddTwoInts", testAddRequestDesc, testAddResponseDesc)
)

func (*testAddRequest) TypeName() string { return testAddRequestDesc.TypeDescription.TypeName }
func (*testAddRequest) TypeHash() string { return typedesc.Hash(testAddRequestDesc) }
func (m *testAddRequest) SerializeCDR() ([]byte, error)    { return cdr.Marshal(m) }
func (m *testAddRequest) DeserializeCDR(data []byte) error { return cdr.Unmarshal(data, m) }

func (*testAddResponse) TypeName() string { return testAddResponseDesc.TypeDescription.TypeName }
func (*testAddResponse) TypeHash() string { return typedesc.Hash(testAddResponseDesc) }
func (m *testAddResponse) SerializeCDR() ([]byte, error)    { return cdr.Marshal(m) }
func (m *testAddResponse) DeserializeCDR(data []byte) error { return cdr.Unmarshal(data, m) }

func addHandler(req *testAddRequest) *testAddResponse {
	return &testAddResponse{Sum: req.A + req.B}
}
