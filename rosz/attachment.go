package rosz

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// AttachmentSize is the encoded size of an Attachment.
	AttachmentSize = 33
	// GIDSize is the length of an endpoint GID.
	GIDSize = 16
)

// GID identifies a publisher or client endpoint.
type GID [GIDSize]byte

// NewGID returns a random GID.
func NewGID() GID {
	return GID(uuid.New())
}

func (g GID) String() string {
	return fmt.Sprintf("%x", g[:])
}

// Attachment is the metadata sent alongside every sample, request and reply:
// seq (i64 LE) | timestamp ns (i64 LE) | gid length (u8) | gid.
type Attachment struct {
	SequenceNumber int64
	TimestampNs    int64
	GID            GID
}

// NewAttachment stamps seq and gid with the current time.
func NewAttachment(seq int64, gid GID) Attachment {
	return Attachment{SequenceNumber: seq, TimestampNs: time.Now().UnixNano(), GID: gid}
}

// Bytes encodes the attachment.
func (a Attachment) Bytes() []byte {
	b := make([]byte, AttachmentSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(a.SequenceNumber))
	binary.LittleEndian.PutUint64(b[8:16], uint64(a.TimestampNs))
	b[16] = GIDSize
	copy(b[17:], a.GID[:])
	return b
}

// DecodeAttachment parses an encoded attachment. Trailing bytes are ignored.
func DecodeAttachment(b []byte) (Attachment, error) {
	if len(b) < AttachmentSize {
		return Attachment{}, RoszError{code: ErrorCodeInvalidAttachment,
			msg: fmt.Sprintf("attachment too short: expected %d bytes, got %d", AttachmentSize, len(b))}
	}
	if b[16] != GIDSize {
		return Attachment{}, RoszError{code: ErrorCodeInvalidAttachment,
			msg: fmt.Sprintf("invalid GID length: expected %d, got %d", GIDSize, b[16])}
	}
	a := Attachment{
		SequenceNumber: int64(binary.LittleEndian.Uint64(b[0:8])),
		TimestampNs:    int64(binary.LittleEndian.Uint64(b[8:16])),
	}
	copy(a.GID[:], b[17:AttachmentSize])
	return a, nil
}

// MessageInfo is the delivery metadata of a received message.
type MessageInfo struct {
	SequenceNumber  int64
	SourceTimestamp time.Time
	PublisherGID    GID
}

func (a Attachment) info() MessageInfo {
	return MessageInfo{
		SequenceNumber:  a.SequenceNumber,
		SourceTimestamp: time.Unix(0, a.TimestampNs),
		PublisherGID:    a.GID,
	}
}
