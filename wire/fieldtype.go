package wire

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/nodeid"
)

// FieldType is a codec abstraction for one body field: it produces a
// default value, encodes a value to its fixed-width wire
// representation, and decodes a value from bytes, returning how many
// bytes it consumed.
type FieldType interface {
	Default() interface{}
	Size() int
	Encode(v interface{}) ([]byte, error)
	Decode(b []byte) (interface{}, int, error)
}

type integerFieldType struct{}

func (integerFieldType) Default() interface{} { return uint32(0) }
func (integerFieldType) Size() int            { return 4 }

func (integerFieldType) Encode(v interface{}) ([]byte, error) {
	u, ok := v.(uint32)
	if !ok {
		return nil, fmt.Errorf("wire: integer field wants uint32, got %T: %w", v, kaderr.ErrCreate)
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, u)
	return buf, nil
}

func (integerFieldType) Decode(b []byte) (interface{}, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("wire: integer field needs 4 bytes, got %d: %w", len(b), kaderr.ErrDecode)
	}
	return binary.BigEndian.Uint32(b[:4]), 4, nil
}

type guidFieldType struct{}

func (guidFieldType) Default() interface{} { return uuid.Nil }
func (guidFieldType) Size() int            { return 16 }

func (guidFieldType) Encode(v interface{}) ([]byte, error) {
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("wire: guid field wants uuid.UUID, got %T: %w", v, kaderr.ErrCreate)
	}
	out := make([]byte, 16)
	copy(out, id[:])
	return out, nil
}

func (guidFieldType) Decode(b []byte) (interface{}, int, error) {
	if len(b) < 16 {
		return nil, 0, fmt.Errorf("wire: guid field needs 16 bytes, got %d: %w", len(b), kaderr.ErrDecode)
	}
	var id uuid.UUID
	copy(id[:], b[:16])
	return id, 16, nil
}

type dateTimeFieldType struct{}

func (dateTimeFieldType) Default() interface{} { return time.Unix(0, 0).UTC() }
func (dateTimeFieldType) Size() int            { return 8 }

func (dateTimeFieldType) Encode(v interface{}) ([]byte, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("wire: datetime field wants time.Time, got %T: %w", v, kaderr.ErrCreate)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return buf, nil
}

func (dateTimeFieldType) Decode(b []byte) (interface{}, int, error) {
	if len(b) < 8 {
		return nil, 0, fmt.Errorf("wire: datetime field needs 8 bytes, got %d: %w", len(b), kaderr.ErrDecode)
	}
	sec := int64(binary.BigEndian.Uint64(b[:8]))
	return time.Unix(sec, 0).UTC(), 8, nil
}

type nodeIDFieldType struct{}

func (nodeIDFieldType) Default() interface{} { return nodeid.Zero }
func (nodeIDFieldType) Size() int            { return nodeid.Size }

func (nodeIDFieldType) Encode(v interface{}) ([]byte, error) {
	id, ok := v.(nodeid.NodeId)
	if !ok {
		return nil, fmt.Errorf("wire: node id field wants nodeid.NodeId, got %T: %w", v, kaderr.ErrCreate)
	}
	return id.Bytes(), nil
}

func (nodeIDFieldType) Decode(b []byte) (interface{}, int, error) {
	if len(b) < nodeid.Size {
		return nil, 0, fmt.Errorf("wire: node id field needs %d bytes, got %d: %w", nodeid.Size, len(b), kaderr.ErrDecode)
	}
	id, err := nodeid.FromBytes(b[:nodeid.Size])
	if err != nil {
		return nil, 0, fmt.Errorf("wire: node id field: %w", err)
	}
	return id, nodeid.Size, nil
}

// Field type singletons: Integer, Guid, DateTime and NodeIdField
// codecs.
var (
	Integer    FieldType = integerFieldType{}
	Guid       FieldType = guidFieldType{}
	DateTime   FieldType = dateTimeFieldType{}
	NodeIDType FieldType = nodeIDFieldType{}
)
