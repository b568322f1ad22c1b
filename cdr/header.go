// Package cdr implements the plain CDR v1 wire encoding used by ROS 2.
//
// Every buffer starts with a 4-byte encapsulation header: a big-endian
// representation identifier followed by two option bytes. Only CdrBE and
// CdrLE are supported; the parameter-list, XCDR2 and delimited identifiers
// are recognised and rejected with ErrUnsupportedEncoding.
package cdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a buffer ends before a value is complete.
	ErrTruncated = errors.New("cdr: buffer truncated")
	// ErrUnsupportedEncoding is returned for representation ids other than CdrBE and CdrLE.
	ErrUnsupportedEncoding = errors.New("cdr: unsupported encoding")
	// ErrInvalidString is returned for strings that are not NUL-terminated.
	ErrInvalidString = errors.New("cdr: string is not NUL terminated")
	// ErrInvalidBool is returned when a boolean byte is neither 0 nor 1.
	ErrInvalidBool = errors.New("cdr: invalid boolean")
	// ErrLengthOverflow is returned when a declared length exceeds the remaining buffer.
	ErrLengthOverflow = errors.New("cdr: length exceeds remaining buffer")
	// ErrUnsupportedType is returned for Go types that have no CDR mapping.
	ErrUnsupportedType = errors.New("cdr: unsupported type")
	// ErrInvalidTarget is returned when Unmarshal is not given a non-nil pointer.
	ErrInvalidTarget = errors.New("cdr: target must be a non-nil pointer")
)

// HeaderSize is the length of the encapsulation header.
const HeaderSize = 4

// RepresentationID identifies the encoding of the payload.
type RepresentationID uint16

const (
	CdrBE     RepresentationID = 0x0000
	CdrLE     RepresentationID = 0x0001
	PlCdrBE   RepresentationID = 0x0002
	PlCdrLE   RepresentationID = 0x0003
	Xcdr2BE   RepresentationID = 0x0006
	Xcdr2LE   RepresentationID = 0x0007
	DCdr2BE   RepresentationID = 0x0008
	DCdr2LE   RepresentationID = 0x0009
	PlXcdr2BE RepresentationID = 0x000a
	PlXcdr2LE RepresentationID = 0x000b
)

var representationNames = map[RepresentationID]string{
	CdrBE:     "CDR_BE",
	CdrLE:     "CDR_LE",
	PlCdrBE:   "PL_CDR_BE",
	PlCdrLE:   "PL_CDR_LE",
	Xcdr2BE:   "CDR2_BE",
	Xcdr2LE:   "CDR2_LE",
	DCdr2BE:   "D_CDR2_BE",
	DCdr2LE:   "D_CDR2_LE",
	PlXcdr2BE: "PL_CDR2_BE",
	PlXcdr2LE: "PL_CDR2_LE",
}

func (id RepresentationID) String() string {
	if name, ok := representationNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(id))
}

// Known reports whether id is one of the identifiers defined by RTPS/XTypes.
func (id RepresentationID) Known() bool {
	_, ok := representationNames[id]
	return ok
}

// IsLittleEndian reports whether the payload is little-endian. All odd
// identifiers are little-endian variants.
func (id RepresentationID) IsLittleEndian() bool {
	return id&1 == 1
}

// IsSupported reports whether this package can encode and decode id.
func (id RepresentationID) IsSupported() bool {
	return id == CdrBE || id == CdrLE
}

// ByteOrder reads and appends multi-byte values in one endianness.
// binary.LittleEndian and binary.BigEndian implement it.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// ByteOrder returns the byte order implied by id.
func (id RepresentationID) ByteOrder() ByteOrder {
	if id.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Bytes returns the big-endian wire form of id.
func (id RepresentationID) Bytes() [2]byte {
	return [2]byte{byte(id >> 8), byte(id)}
}

// Header is the encapsulation header preceding every payload.
type Header struct {
	ID      RepresentationID
	Options uint16
}

// DefaultHeader is the CDR little-endian header with no options.
var DefaultHeader = Header{ID: CdrLE}

// Bytes returns the 4-byte wire form of h.
func (h Header) Bytes() [HeaderSize]byte {
	id := h.ID.Bytes()
	return [HeaderSize]byte{id[0], id[1], byte(h.Options >> 8), byte(h.Options)}
}

// ParseHeader reads and validates the encapsulation header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, HeaderSize, len(data))
	}
	h := Header{
		ID:      RepresentationID(binary.BigEndian.Uint16(data[0:2])),
		Options: binary.BigEndian.Uint16(data[2:4]),
	}
	if !h.ID.Known() {
		return h, fmt.Errorf("%w: unknown representation identifier %s", ErrUnsupportedEncoding, h.ID)
	}
	if !h.ID.IsSupported() {
		return h, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, h.ID)
	}
	return h, nil
}
