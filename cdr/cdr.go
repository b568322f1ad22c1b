package cdr

import (
	"fmt"
	"reflect"
)

// Marshal encodes v with the default little-endian header.
//
// Go types map to IDL types as follows: bool, int8..int64, uint8..uint64,
// float32 and float64 map to the matching primitives; string is a CDR
// string; slices are sequences and arrays are fixed arrays; structs are
// encoded field by field in declaration order. Fields tagged `cdr:"-"` and
// unexported fields are skipped. Types implementing Marshaler and
// Unmarshaler encode themselves.
func Marshal(v any) ([]byte, error) {
	return MarshalWithHeader(v, DefaultHeader)
}

// MarshalWithHeader encodes v after the given header. The header's
// representation id selects the byte order.
func MarshalWithHeader(v any, h Header) ([]byte, error) {
	if !h.ID.IsSupported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, h.ID)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %s", ErrUnsupportedType, rv.Type())
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedType)
	}
	c, err := scanToCache(rv.Type())
	if err != nil {
		return nil, err
	}
	e := NewEncoder(h.ID.ByteOrder())
	if err := c.encodeTo(e, rv); err != nil {
		return nil, err
	}
	return Finish(h, e), nil
}

// Unmarshal decodes data, header included, into the value pointed to by v.
// Trailing bytes after the value are ignored.
func Unmarshal(data []byte, v any) error {
	d, err := NewPayloadDecoder(data)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}
	rv = rv.Elem()
	c, err := scanToCache(rv.Type())
	if err != nil {
		return err
	}
	return c.decodeTo(d, rv)
}

// NewPayloadDecoder parses the header of data and returns a decoder over the
// payload that follows it.
func NewPayloadDecoder(data []byte) (*Decoder, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	return NewDecoder(data[HeaderSize:], h.ID.ByteOrder()), nil
}

// NewPayloadEncoder returns an encoder for a payload following h. Use Finish
// to prepend the header.
func NewPayloadEncoder(h Header) (*Encoder, error) {
	if !h.ID.IsSupported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, h.ID)
	}
	return NewEncoder(h.ID.ByteOrder()), nil
}

// Finish returns h followed by the encoder's payload.
func Finish(h Header, e *Encoder) []byte {
	hb := h.Bytes()
	out := make([]byte, 0, HeaderSize+e.Len())
	out = append(out, hb[:]...)
	return append(out, e.Bytes()...)
}
