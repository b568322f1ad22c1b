package testdata

import (
	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

// Int32 is a ROS 2 message type
// Full name: std_msgs/msg/Int32
type Int32 struct {
	Data int32
}

const Int32_TypeName = "std_msgs/msg/Int32"

var (
	Int32_Description = typedesc.NewMessage(
		typedesc.NewIndividual(Int32_TypeName,
			typedesc.NewField("data", typedesc.Primitive(typedesc.FieldTypeInt32)),
		),
	)
	Int32_TypeHash = typedesc.Hash(Int32_Description)
)

func (m *Int32) TypeName() string                  { return Int32_TypeName }
func (m *Int32) TypeHash() string                  { return Int32_TypeHash }
func (m *Int32) TypeDescription() typedesc.Message { return Int32_Description }
func (m *Int32) SerializeCDR() ([]byte, error)     { return cdr.Marshal(m) }
func (m *Int32) DeserializeCDR(data []byte) error  { return cdr.Unmarshal(data, m) }
