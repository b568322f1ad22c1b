// Package testdata provides sample generated message types for testing.
// String encodes itself through the cdr encoder the way hand-tuned types
// do; the other types rely on the reflective codec.
package testdata

import (
	"fmt"

	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

// String is a ROS 2 message type
// Full name: std_msgs/msg/String
type String struct {
	Data string
}

const (
	String_TypeName = "std_msgs/msg/String"
	String_TypeHash = "RIHS01_df668c740482bbd48fb39d76a70dfd4bd59db1288021743503259e948f6b1a18"
)

var String_Description = typedesc.NewMessage(
	typedesc.NewIndividual(String_TypeName,
		typedesc.NewField("data", typedesc.Primitive(typedesc.FieldTypeString)),
	),
)

// TypeName returns the full ROS 2 type name
func (m *String) TypeName() string {
	return String_TypeName
}

// TypeHash returns the ROS 2 type hash (RIHS01 format)
func (m *String) TypeHash() string {
	return String_TypeHash
}

func (m *String) TypeDescription() typedesc.Message {
	return String_Description
}

// SerializeCDR serializes the message to CDR format
func (m *String) SerializeCDR() ([]byte, error) {
	e, err := cdr.NewPayloadEncoder(cdr.DefaultHeader)
	if err != nil {
		return nil, err
	}
	e.WriteString(m.Data)
	return cdr.Finish(cdr.DefaultHeader, e), nil
}

// DeserializeCDR deserializes CDR data into the message
func (m *String) DeserializeCDR(data []byte) error {
	d, err := cdr.NewPayloadDecoder(data)
	if err != nil {
		return err
	}
	s, err := d.ReadString()
	if err != nil {
		return fmt.Errorf("std_msgs/msg/String data: %w", err)
	}
	m.Data = s
	return nil
}
