package cdr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decoder reads CDR-encoded primitives from a payload. Reads past the end of
// the payload return ErrTruncated instead of panicking.
type Decoder struct {
	data  []byte
	off   int
	order binary.ByteOrder
}

// NewDecoder returns a decoder over payload, which must not include the header.
func NewDecoder(payload []byte, order binary.ByteOrder) *Decoder {
	return &Decoder{data: payload, order: order}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Offset returns the current read position relative to the payload start.
func (d *Decoder) Offset() int {
	return d.off
}

func (d *Decoder) align(n int) {
	if rem := d.off % n; rem != 0 {
		d.off += n - rem
	}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, d.Remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

// ReadBool reads a boolean byte. Only 0 and 1 are accepted.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: 0x%02x at offset %d", ErrInvalidBool, b[0], d.off-1)
}

// ReadUint8 reads an octet.
func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a signed octet.
func (d *Decoder) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a 2-byte aligned uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	d.align(2)
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

// ReadInt16 reads a 2-byte aligned int16.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a 4-byte aligned uint32.
func (d *Decoder) ReadUint32() (uint32, error) {
	d.align(4)
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

// ReadInt32 reads a 4-byte aligned int32.
func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads an 8-byte aligned uint64.
func (d *Decoder) ReadUint64() (uint64, error) {
	d.align(8)
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

// ReadInt64 reads an 8-byte aligned int64.
func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE-754 single.
func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads an IEEE-754 double.
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a length-prefixed, NUL-terminated string. A zero length
// is tolerated and yields the empty string.
func (d *Decoder) ReadString() (string, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if int64(n) > int64(d.Remaining()) {
		return "", fmt.Errorf("%w: string of %d bytes, %d remaining", ErrLengthOverflow, n, d.Remaining())
	}
	b, _ := d.take(int(n))
	if b[n-1] != 0 {
		return "", fmt.Errorf("%w at offset %d", ErrInvalidString, d.off-1)
	}
	return string(b[:n-1]), nil
}

// ReadSequenceLen reads a sequence element count and checks that at least
// minElemSize*count bytes remain.
func (d *Decoder) ReadSequenceLen(minElemSize int) (int, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	if minElemSize < 1 {
		minElemSize = 1
	}
	if int64(n)*int64(minElemSize) > int64(d.Remaining()) {
		return 0, fmt.Errorf("%w: sequence of %d elements, %d bytes remaining", ErrLengthOverflow, n, d.Remaining())
	}
	return int(n), nil
}

// ReadOctets reads a length-prefixed octet sequence.
func (d *Decoder) ReadOctets() ([]byte, error) {
	n, err := d.ReadSequenceLen(1)
	if err != nil {
		return nil, err
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadRaw reads n bytes without length or alignment.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
