package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/nodeid"
)

// ProtocolVersion is the current wire protocol version.
const ProtocolVersion uint32 = 1

// HeaderSize is the fixed wire size of a MessageHeader:
// 4 + 16 + 16 + 4 + 8 + 20 bytes.
const HeaderSize = 4 + 16 + 16 + 4 + 8 + 20

// MessageHeader carries the fields common to every message, in wire
// order. RequestGuid is the zero UUID on a request leg; SenderNodeID is
// nodeid.Zero when absent.
type MessageHeader struct {
	MessageTypeID uint32
	Guid          uuid.UUID
	RequestGuid   uuid.UUID
	Version       uint32
	CreatedOn     time.Time
	SenderNodeID  nodeid.NodeId
}

// newHeader builds a fresh header for typeTag: a new guid, the current
// time in whole UTC seconds, protocol version 1, and no request_guid or
// sender_node_id.
func newHeader(typeTag uint32) MessageHeader {
	return MessageHeader{
		MessageTypeID: typeTag,
		Guid:          uuid.New(),
		Version:       ProtocolVersion,
		CreatedOn:     time.Now().UTC().Truncate(time.Second),
	}
}

// encode writes the header in declared wire order: message_type_id
// (duplicating the 4-byte packet prefix), guid, request_guid, version,
// created_on, sender_node_id.
func (h MessageHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.MessageTypeID)
	copy(buf[4:20], h.Guid[:])
	copy(buf[20:36], h.RequestGuid[:])
	binary.BigEndian.PutUint32(buf[36:40], h.Version)
	binary.BigEndian.PutUint64(buf[40:48], uint64(h.CreatedOn.Unix()))
	copy(buf[48:68], h.SenderNodeID[:])
	return buf
}

func decodeHeader(b []byte) (MessageHeader, error) {
	if len(b) < HeaderSize {
		return MessageHeader{}, fmt.Errorf("wire: header needs %d bytes, got %d: %w", HeaderSize, len(b), kaderr.ErrDecode)
	}

	var h MessageHeader
	h.MessageTypeID = binary.BigEndian.Uint32(b[0:4])
	copy(h.Guid[:], b[4:20])
	copy(h.RequestGuid[:], b[20:36])
	h.Version = binary.BigEndian.Uint32(b[36:40])
	h.CreatedOn = time.Unix(int64(binary.BigEndian.Uint64(b[40:48])), 0).UTC()
	id, err := nodeid.FromBytes(b[48:68])
	if err != nil {
		return MessageHeader{}, fmt.Errorf("wire: header sender_node_id: %w", err)
	}
	h.SenderNodeID = id
	return h, nil
}

// HasSender reports whether the header carries a non-zero sender id.
func (h MessageHeader) HasSender() bool {
	return !h.SenderNodeID.IsZero()
}

// IsRequest reports whether the header has no request_guid, i.e. this
// message is a request leg rather than a response.
func (h MessageHeader) IsRequest() bool {
	return h.RequestGuid == uuid.Nil
}
