package testdata

import (
	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

const (
	Point_TypeName      = "geometry_msgs/msg/Point"
	Quaternion_TypeName = "geometry_msgs/msg/Quaternion"
	Pose_TypeName       = "geometry_msgs/msg/Pose"
)

func float64Fields(names ...string) []typedesc.Field {
	fields := make([]typedesc.Field, len(names))
	for i, n := range names {
		fields[i] = typedesc.NewField(n, typedesc.Primitive(typedesc.FieldTypeDouble))
	}
	return fields
}

var (
	pointIndividual      = typedesc.NewIndividual(Point_TypeName, float64Fields("x", "y", "z")...)
	quaternionIndividual = typedesc.NewIndividual(Quaternion_TypeName, float64Fields("x", "y", "z", "w")...)

	Point_Description      = typedesc.NewMessage(pointIndividual)
	Quaternion_Description = typedesc.NewMessage(quaternionIndividual)
	Pose_Description       = typedesc.NewMessage(
		typedesc.NewIndividual(Pose_TypeName,
			typedesc.NewField("position", typedesc.Nested(Point_TypeName)),
			typedesc.NewField("orientation", typedesc.Nested(Quaternion_TypeName)),
		),
		pointIndividual,
		quaternionIndividual,
	)

	Point_TypeHash      = typedesc.Hash(Point_Description)
	Quaternion_TypeHash = typedesc.Hash(Quaternion_Description)
	Pose_TypeHash       = typedesc.Hash(Pose_Description)
)

// Point represents a 3D point
type Point struct {
	X float64
	Y float64
	Z float64
}

func (m *Point) TypeName() string                  { return Point_TypeName }
func (m *Point) TypeHash() string                  { return Point_TypeHash }
func (m *Point) TypeDescription() typedesc.Message { return Point_Description }
func (m *Point) SerializeCDR() ([]byte, error)     { return cdr.Marshal(m) }
func (m *Point) DeserializeCDR(data []byte) error  { return cdr.Unmarshal(data, m) }

// Quaternion represents orientation
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

func (m *Quaternion) TypeName() string                  { return Quaternion_TypeName }
func (m *Quaternion) TypeHash() string                  { return Quaternion_TypeHash }
func (m *Quaternion) TypeDescription() typedesc.Message { return Quaternion_Description }
func (m *Quaternion) SerializeCDR() ([]byte, error)     { return cdr.Marshal(m) }
func (m *Quaternion) DeserializeCDR(data []byte) error  { return cdr.Unmarshal(data, m) }

// Pose represents position and orientation
type Pose struct {
	Position    Point
	Orientation Quaternion
}

func (m *Pose) TypeName() string                  { return Pose_TypeName }
func (m *Pose) TypeHash() string                  { return Pose_TypeHash }
func (m *Pose) TypeDescription() typedesc.Message { return Pose_Description }
func (m *Pose) SerializeCDR() ([]byte, error)     { return cdr.Marshal(m) }
func (m *Pose) DeserializeCDR(data []byte) error  { return cdr.Unmarshal(data, m) }
