package cdr

import (
	"fmt"
	"math"
	"reflect"
	"sync"
)

// Marshaler is implemented by types that encode themselves.
type Marshaler interface {
	MarshalCDR(*Encoder) error
}

// Unmarshaler is implemented by types that decode themselves.
type Unmarshaler interface {
	UnmarshalCDR(*Decoder) error
}

var (
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

// codec encodes and decodes one Go type.
type codec interface {
	encodeTo(*Encoder, reflect.Value) error
	decodeTo(*Decoder, reflect.Value) error
}

// plans caches the codec tree of every type seen so far.
var plans sync.Map // reflect.Type -> codec

func scanToCache(t reflect.Type) (codec, error) {
	if c, ok := plans.Load(t); ok {
		return c.(codec), nil
	}
	c, err := scan(t, map[reflect.Type]*structCodec{})
	if err != nil {
		return nil, err
	}
	actual, _ := plans.LoadOrStore(t, c)
	return actual.(codec), nil
}

func scan(t reflect.Type, inProgress map[reflect.Type]*structCodec) (codec, error) {
	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		if reflect.PointerTo(t).Implements(unmarshalerType) {
			return marshalerCodec{}, nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return boolCodec{}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return intCodec{kind: t.Kind()}, nil
	case reflect.Float32, reflect.Float64:
		return floatCodec{kind: t.Kind()}, nil
	case reflect.String:
		return stringCodec{}, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && !hasHooks(t.Elem()) {
			return octetSliceCodec{}, nil
		}
		elem, err := scan(t.Elem(), inProgress)
		if err != nil {
			return nil, err
		}
		return &sliceCodec{elem: elem, minSize: minWireSize(t.Elem())}, nil
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && !hasHooks(t.Elem()) {
			return octetArrayCodec{}, nil
		}
		elem, err := scan(t.Elem(), inProgress)
		if err != nil {
			return nil, err
		}
		return &arrayCodec{elem: elem}, nil
	case reflect.Struct:
		return scanStruct(t, inProgress)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func scanStruct(t reflect.Type, inProgress map[reflect.Type]*structCodec) (codec, error) {
	if sc, ok := inProgress[t]; ok {
		return sc, nil
	}
	sc := &structCodec{}
	inProgress[t] = sc
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("cdr") == "-" {
			continue
		}
		c, err := scan(f.Type, inProgress)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), f.Name, err)
		}
		sc.fields = append(sc.fields, fieldCodec{index: i, codec: c})
	}
	return sc, nil
}

func hasHooks(t reflect.Type) bool {
	return t.Implements(marshalerType) || reflect.PointerTo(t).Implements(unmarshalerType)
}

// minWireSize is the smallest encoding of t, used to reject sequence counts
// that cannot fit in the remaining buffer. Padding is ignored, so the result
// is a lower bound. Types with hooks count as one byte.
func minWireSize(t reflect.Type) int {
	if hasHooks(t) {
		return 1
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32, reflect.String, reflect.Slice:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	case reflect.Array:
		return saturatingMul(t.Len(), minWireSize(t.Elem()))
	case reflect.Struct:
		n := 0
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("cdr") == "-" {
				continue
			}
			n = saturatingAdd(n, minWireSize(f.Type))
		}
		return n
	}
	return 1
}

const maxWireSize = math.MaxInt32

func saturatingMul(a, b int) int {
	if a != 0 && b > maxWireSize/a {
		return maxWireSize
	}
	return min(a*b, maxWireSize)
}

func saturatingAdd(a, b int) int {
	return min(a+b, maxWireSize)
}

type boolCodec struct{}

func (boolCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	e.WriteBool(rv.Bool())
	return nil
}

func (boolCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	v, err := d.ReadBool()
	if err != nil {
		return err
	}
	rv.SetBool(v)
	return nil
}

type intCodec struct {
	kind reflect.Kind
}

func (c intCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	switch c.kind {
	case reflect.Int8:
		e.WriteInt8(int8(rv.Int()))
	case reflect.Int16:
		e.WriteInt16(int16(rv.Int()))
	case reflect.Int32:
		e.WriteInt32(int32(rv.Int()))
	case reflect.Int64:
		e.WriteInt64(rv.Int())
	case reflect.Uint8:
		e.WriteUint8(uint8(rv.Uint()))
	case reflect.Uint16:
		e.WriteUint16(uint16(rv.Uint()))
	case reflect.Uint32:
		e.WriteUint32(uint32(rv.Uint()))
	case reflect.Uint64:
		e.WriteUint64(rv.Uint())
	}
	return nil
}

func (c intCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	switch c.kind {
	case reflect.Int8:
		v, err := d.ReadInt8()
		rv.SetInt(int64(v))
		return err
	case reflect.Int16:
		v, err := d.ReadInt16()
		rv.SetInt(int64(v))
		return err
	case reflect.Int32:
		v, err := d.ReadInt32()
		rv.SetInt(int64(v))
		return err
	case reflect.Int64:
		v, err := d.ReadInt64()
		rv.SetInt(v)
		return err
	case reflect.Uint8:
		v, err := d.ReadUint8()
		rv.SetUint(uint64(v))
		return err
	case reflect.Uint16:
		v, err := d.ReadUint16()
		rv.SetUint(uint64(v))
		return err
	case reflect.Uint32:
		v, err := d.ReadUint32()
		rv.SetUint(uint64(v))
		return err
	case reflect.Uint64:
		v, err := d.ReadUint64()
		rv.SetUint(v)
		return err
	}
	return nil
}

type floatCodec struct {
	kind reflect.Kind
}

func (c floatCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	if c.kind == reflect.Float32 {
		e.WriteFloat32(float32(rv.Float()))
	} else {
		e.WriteFloat64(rv.Float())
	}
	return nil
}

func (c floatCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	if c.kind == reflect.Float32 {
		v, err := d.ReadFloat32()
		rv.SetFloat(float64(v))
		return err
	}
	v, err := d.ReadFloat64()
	rv.SetFloat(v)
	return err
}

type stringCodec struct{}

func (stringCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	e.WriteString(rv.String())
	return nil
}

func (stringCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	v, err := d.ReadString()
	if err != nil {
		return err
	}
	rv.SetString(v)
	return nil
}

type octetSliceCodec struct{}

func (octetSliceCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	e.WriteOctets(rv.Bytes())
	return nil
}

func (octetSliceCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	b, err := d.ReadOctets()
	if err != nil {
		return err
	}
	rv.SetBytes(b)
	return nil
}

type octetArrayCodec struct{}

func (octetArrayCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	for i := 0; i < rv.Len(); i++ {
		e.WriteUint8(uint8(rv.Index(i).Uint()))
	}
	return nil
}

func (octetArrayCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	b, err := d.ReadRaw(rv.Len())
	if err != nil {
		return err
	}
	for i, v := range b {
		rv.Index(i).SetUint(uint64(v))
	}
	return nil
}

type sliceCodec struct {
	elem    codec
	minSize int
}

func (c *sliceCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	n := rv.Len()
	e.WriteSequenceLen(n)
	for i := 0; i < n; i++ {
		if err := c.elem.encodeTo(e, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *sliceCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	n, err := d.ReadSequenceLen(c.minSize)
	if err != nil {
		return err
	}
	s := reflect.MakeSlice(rv.Type(), n, n)
	for i := 0; i < n; i++ {
		if err := c.elem.decodeTo(d, s.Index(i)); err != nil {
			return err
		}
	}
	rv.Set(s)
	return nil
}

type arrayCodec struct {
	elem codec
}

func (c *arrayCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	for i := 0; i < rv.Len(); i++ {
		if err := c.elem.encodeTo(e, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (c *arrayCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	for i := 0; i < rv.Len(); i++ {
		if err := c.elem.decodeTo(d, rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

type fieldCodec struct {
	index int
	codec codec
}

type structCodec struct {
	fields []fieldCodec
}

func (c *structCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	for _, f := range c.fields {
		if err := f.codec.encodeTo(e, rv.Field(f.index)); err != nil {
			return err
		}
	}
	return nil
}

func (c *structCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	for _, f := range c.fields {
		if err := f.codec.decodeTo(d, rv.Field(f.index)); err != nil {
			return err
		}
	}
	return nil
}

type marshalerCodec struct{}

func (marshalerCodec) encodeTo(e *Encoder, rv reflect.Value) error {
	if m, ok := rv.Interface().(Marshaler); ok {
		return m.MarshalCDR(e)
	}
	if !rv.CanAddr() {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p.Elem()
	}
	return rv.Addr().Interface().(Marshaler).MarshalCDR(e)
}

func (marshalerCodec) decodeTo(d *Decoder, rv reflect.Value) error {
	if !rv.CanAddr() {
		return fmt.Errorf("%w: cannot decode into non-addressable %s", ErrInvalidTarget, rv.Type())
	}
	return rv.Addr().Interface().(Unmarshaler).UnmarshalCDR(d)
}
