// Package wire implements the self-describing binary message framing
// layer: a per-message type tag, a fixed header, and an ordered list of
// typed fields, encoded and decoded through a process-wide type
// registry.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/MildC/kad-core/internal/kaderr"
)

// Message is the capability set every concrete message type implements:
// read its type tag and header, and get/set its declared body fields by
// name. Concrete types live in messages.go; generic callers (the
// dispatcher, tests) only ever see this interface.
type Message interface {
	TypeTag() uint32
	Header() MessageHeader
	SetHeader(MessageHeader)

	fieldValue(name string) (interface{}, bool)
	setFieldValue(name string, v interface{}) error
	setTypeTag(typeTag uint32)
}

// BaseMessage is embedded by every concrete message type to provide the
// Header/SetHeader/TypeTag machinery; only field access is left to the
// embedder.
type BaseMessage struct {
	typeTag uint32
	header  MessageHeader
}

// TypeTag returns the message's registered type tag.
func (b *BaseMessage) TypeTag() uint32 { return b.typeTag }

// Header returns a copy of the message's header.
func (b *BaseMessage) Header() MessageHeader { return b.header }

// SetHeader replaces the message's header.
func (b *BaseMessage) SetHeader(h MessageHeader) { b.header = h }

// setTypeTag records which registered type this message was built as.
// Only New and Decode call this; a message's tag never changes after
// construction.
func (b *BaseMessage) setTypeTag(typeTag uint32) { b.typeTag = typeTag }

// New constructs a message of the given type tag. Fields not present in
// the supplied map take their FieldType's default. A new header is
// created with a fresh guid, created_on = now, version = 1, and no
// request_guid or sender_node_id.
func New(typeTag uint32, fields map[string]interface{}) (Message, error) {
	desc, ok := Lookup(typeTag)
	if !ok {
		return nil, fmt.Errorf("wire: new message: type tag %d: %w", typeTag, kaderr.ErrCreate)
	}

	msg := desc.New()
	msg.setTypeTag(typeTag)
	msg.SetHeader(newHeader(typeTag))

	for _, spec := range desc.Fields {
		v, provided := fields[spec.Name]
		if !provided {
			v = spec.Type.Default()
		}
		if err := msg.setFieldValue(spec.Name, v); err != nil {
			return nil, fmt.Errorf("wire: new message %q: %w", desc.Name, err)
		}
	}
	return msg, nil
}

// Encode produces the wire bytes for m: the 4-byte type tag, the
// header, then the body fields in declaration order.
func Encode(m Message) ([]byte, error) {
	desc, ok := Lookup(m.TypeTag())
	if !ok {
		return nil, fmt.Errorf("wire: encode: type tag %d: %w", m.TypeTag(), kaderr.ErrUnknownType)
	}

	var buf bytes.Buffer
	var tagBuf [4]byte
	binary.BigEndian.PutUint32(tagBuf[:], m.TypeTag())
	buf.Write(tagBuf[:])

	header := m.Header().encode()
	buf.Write(header)

	for _, spec := range desc.Fields {
		v, _ := m.fieldValue(spec.Name)
		b, err := spec.Type.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("wire: encode %q.%s: %w", desc.Name, spec.Name, err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode: it reads the 4-byte type tag, looks
// up the registered class, and walks its declared fields in order.
func Decode(data []byte) (Message, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("wire: decode: buffer too short for type tag: %w", kaderr.ErrDecode)
	}
	tag := binary.BigEndian.Uint32(data[0:4])

	desc, ok := Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("wire: decode: type tag %d: %w", tag, kaderr.ErrUnknownType)
	}

	rest := data[4:]
	header, err := decodeHeader(rest)
	if err != nil {
		return nil, err
	}

	msg := desc.New()
	msg.setTypeTag(tag)
	msg.SetHeader(header)

	cursor := HeaderSize
	for _, spec := range desc.Fields {
		if cursor > len(rest) {
			return nil, fmt.Errorf("wire: decode %q.%s: buffer exhausted: %w", desc.Name, spec.Name, kaderr.ErrDecode)
		}
		v, n, err := spec.Type.Decode(rest[cursor:])
		if err != nil {
			return nil, fmt.Errorf("wire: decode %q.%s: %w", desc.Name, spec.Name, err)
		}
		if err := msg.setFieldValue(spec.Name, v); err != nil {
			return nil, fmt.Errorf("wire: decode %q.%s: %w", desc.Name, spec.Name, err)
		}
		cursor += n
	}
	return msg, nil
}

// Respond builds a new message of respTypeTag, copying its
// header.RequestGuid from m's header.Guid. No other header field is
// inherited. respTypeTag must be a registered message class, else
// ErrCreate.
func Respond(m Message, respTypeTag uint32, fields map[string]interface{}) (Message, error) {
	resp, err := New(respTypeTag, fields)
	if err != nil {
		return nil, fmt.Errorf("wire: respond: %w", err)
	}
	h := resp.Header()
	h.RequestGuid = m.Header().Guid
	resp.SetHeader(h)
	return resp, nil
}
