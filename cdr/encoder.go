package cdr

import "math"

// Encoder appends CDR-encoded primitives to a buffer. Alignment is computed
// relative to the first payload byte, which is where the encoder starts.
type Encoder struct {
	buf   []byte
	order ByteOrder
}

// NewEncoder returns an encoder writing in the given byte order.
func NewEncoder(order ByteOrder) *Encoder {
	return &Encoder{buf: make([]byte, 0, 64), order: order}
}

// Bytes returns the encoded payload, without header.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of payload bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) align(n int) {
	for len(e.buf)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

// WriteBool writes a boolean as a single byte.
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

// WriteUint8 writes an octet.
func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

// WriteInt8 writes a signed octet.
func (e *Encoder) WriteInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

// WriteUint16 writes a 2-byte aligned uint16.
func (e *Encoder) WriteUint16(v uint16) {
	e.align(2)
	e.buf = e.order.AppendUint16(e.buf, v)
}

// WriteInt16 writes a 2-byte aligned int16.
func (e *Encoder) WriteInt16(v int16) {
	e.WriteUint16(uint16(v))
}

// WriteUint32 writes a 4-byte aligned uint32.
func (e *Encoder) WriteUint32(v uint32) {
	e.align(4)
	e.buf = e.order.AppendUint32(e.buf, v)
}

// WriteInt32 writes a 4-byte aligned int32.
func (e *Encoder) WriteInt32(v int32) {
	e.WriteUint32(uint32(v))
}

// WriteUint64 writes an 8-byte aligned uint64.
func (e *Encoder) WriteUint64(v uint64) {
	e.align(8)
	e.buf = e.order.AppendUint64(e.buf, v)
}

// WriteInt64 writes an 8-byte aligned int64.
func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

// WriteFloat32 writes an IEEE-754 single.
func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 writes an IEEE-754 double.
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteString writes a length-prefixed, NUL-terminated string. The length
// counts the terminator.
func (e *Encoder) WriteString(v string) {
	e.WriteUint32(uint32(len(v) + 1))
	e.buf = append(e.buf, v...)
	e.buf = append(e.buf, 0)
}

// WriteSequenceLen writes the element count that precedes a sequence.
func (e *Encoder) WriteSequenceLen(n int) {
	e.WriteUint32(uint32(n))
}

// WriteOctets writes a sequence of octets with its length prefix.
func (e *Encoder) WriteOctets(v []byte) {
	e.WriteSequenceLen(len(v))
	e.buf = append(e.buf, v...)
}

// WriteRaw appends bytes without length or alignment, as used for fixed
// octet arrays.
func (e *Encoder) WriteRaw(v []byte) {
	e.buf = append(e.buf, v...)
}
