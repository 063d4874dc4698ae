package wire

import (
	"fmt"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/nodeid"
)

// Reference message types. Real deployments register more under their
// own tags. The serve command registers a handler for PingRequest only;
// the other two have no handler in this module.
const (
	TypePingRequest        uint32 = 100
	TypePongResponse       uint32 = 101
	TypeFindClosestRequest uint32 = 200
)

// PingRequest carries a random nonce a peer expects echoed back.
type PingRequest struct {
	BaseMessage
	Value uint32
}

func (m *PingRequest) fieldValue(name string) (interface{}, bool) {
	if name == "value" {
		return m.Value, true
	}
	return nil, false
}

func (m *PingRequest) setFieldValue(name string, v interface{}) error {
	if name != "value" {
		return fmt.Errorf("ping_request: unknown field %q: %w", name, kaderr.ErrCreate)
	}
	u, ok := v.(uint32)
	if !ok {
		return fmt.Errorf("ping_request.value: want uint32, got %T: %w", v, kaderr.ErrCreate)
	}
	m.Value = u
	return nil
}

// PongResponse echoes the nonce from the PingRequest it answers.
type PongResponse struct {
	BaseMessage
	Value uint32
}

func (m *PongResponse) fieldValue(name string) (interface{}, bool) {
	if name == "value" {
		return m.Value, true
	}
	return nil, false
}

func (m *PongResponse) setFieldValue(name string, v interface{}) error {
	if name != "value" {
		return fmt.Errorf("pong_response: unknown field %q: %w", name, kaderr.ErrCreate)
	}
	u, ok := v.(uint32)
	if !ok {
		return fmt.Errorf("pong_response.value: want uint32, got %T: %w", v, kaderr.ErrCreate)
	}
	m.Value = u
	return nil
}

// FindClosestRequest asks a peer for the contacts closest to NodeID.
// The iterative lookup that would consume the response stays out of
// scope; only the message shape is provided as a hook.
type FindClosestRequest struct {
	BaseMessage
	NodeID nodeid.NodeId
}

func (m *FindClosestRequest) fieldValue(name string) (interface{}, bool) {
	if name == "node_id" {
		return m.NodeID, true
	}
	return nil, false
}

func (m *FindClosestRequest) setFieldValue(name string, v interface{}) error {
	if name != "node_id" {
		return fmt.Errorf("find_closest_request: unknown field %q: %w", name, kaderr.ErrCreate)
	}
	id, ok := v.(nodeid.NodeId)
	if !ok {
		return fmt.Errorf("find_closest_request.node_id: want nodeid.NodeId, got %T: %w", v, kaderr.ErrCreate)
	}
	m.NodeID = id
	return nil
}

func init() {
	builtins := []Descriptor{
		{
			TypeTag: TypePingRequest,
			Name:    "PingRequest",
			Fields:  []FieldSpec{{Name: "value", Type: Integer}},
			New:     func() Message { return &PingRequest{} },
		},
		{
			TypeTag: TypePongResponse,
			Name:    "PongResponse",
			Fields:  []FieldSpec{{Name: "value", Type: Integer}},
			New:     func() Message { return &PongResponse{} },
		},
		{
			TypeTag: TypeFindClosestRequest,
			Name:    "FindClosestRequest",
			Fields:  []FieldSpec{{Name: "node_id", Type: NodeIDType}},
			New:     func() Message { return &FindClosestRequest{} },
		},
	}
	for _, d := range builtins {
		if err := Register(d); err != nil {
			// A declare error for a built-in type is a programming
			// bug, not a runtime condition to recover from.
			panic(err)
		}
	}
}
