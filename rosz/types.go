package rosz

import (
	"reflect"
	"time"

	"github.com/jazi007/oxidros-sub001/cdr"
	"github.com/jazi007/oxidros-sub001/typedesc"
)

// Message is implemented by all generated message types
type Message interface {
	// TypeName returns the full ROS 2 type name (e.g., "std_msgs/msg/String")
	TypeName() string

	// TypeHash returns the ROS 2 type hash (RIHS01 format)
	TypeHash() string

	// SerializeCDR serializes the message to CDR format
	SerializeCDR() ([]byte, error)

	// DeserializeCDR deserializes CDR data into the message
	DeserializeCDR(data []byte) error
}

// Describer is implemented by messages that can describe their structure.
// Generated types implement it; TypeHash is the hash of the description.
type Describer interface {
	TypeDescription() typedesc.Message
}

// ServiceType names a service type and carries its hash.
type ServiceType struct {
	Name string
	Hash string
}

// NewServiceType describes service name ("pkg/srv/Name") from its request
// and response descriptions.
func NewServiceType(name string, request, response typedesc.Message) ServiceType {
	return ServiceType{Name: name, Hash: typedesc.Hash(typedesc.NewService(name, request, response))}
}

// newMessage returns a ready-to-decode T. Pointer types get a fresh value so
// DeserializeCDR does not run on a nil receiver.
func newMessage[T Message]() T {
	var msg T
	if t := reflect.TypeOf(msg); t != nil && t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(T)
	}
	return msg
}

// Time represents a ROS 2 time
type Time struct {
	Sec  int32
	Nsec uint32
}

// TimeFrom converts a time.Time.
func TimeFrom(t time.Time) Time {
	ns := t.UnixNano()
	return Time{Sec: int32(ns / 1e9), Nsec: uint32(ns % 1e9)}
}

// Std converts to a time.Time.
func (t Time) Std() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nsec))
}

func (t Time) MarshalCDR(e *cdr.Encoder) error {
	e.WriteInt32(t.Sec)
	e.WriteUint32(t.Nsec)
	return nil
}

func (t *Time) UnmarshalCDR(d *cdr.Decoder) error {
	var err error
	if t.Sec, err = d.ReadInt32(); err != nil {
		return err
	}
	t.Nsec, err = d.ReadUint32()
	return err
}

// Duration represents a ROS 2 duration
type Duration struct {
	Sec  int32
	Nsec uint32
}

// DurationFrom converts a time.Duration.
func DurationFrom(d time.Duration) Duration {
	sec := d / time.Second
	nsec := d % time.Second
	if nsec < 0 {
		sec--
		nsec += time.Second
	}
	return Duration{Sec: int32(sec), Nsec: uint32(nsec)}
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nsec)
}

func (d Duration) MarshalCDR(e *cdr.Encoder) error {
	e.WriteInt32(d.Sec)
	e.WriteUint32(d.Nsec)
	return nil
}

func (d *Duration) UnmarshalCDR(dec *cdr.Decoder) error {
	var err error
	if d.Sec, err = dec.ReadInt32(); err != nil {
		return err
	}
	d.Nsec, err = dec.ReadUint32()
	return err
}
