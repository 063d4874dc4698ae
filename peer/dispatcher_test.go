package peer

import (
	"context"
	"testing"

	"github.com/MildC/kad-core/kademlia"
	"github.com/MildC/kad-core/nodeid"
	"github.com/MildC/kad-core/wire"
)

func newTestTable(t *testing.T) *kademlia.RoutingTable {
	t.Helper()
	owner, err := nodeid.Generate()
	if err != nil {
		t.Fatalf("generate owner id: %v", err)
	}
	return kademlia.New(owner)
}

func encodePing(t *testing.T, value uint32) []byte {
	t.Helper()
	msg, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": value})
	if err != nil {
		t.Fatalf("new ping: %v", err)
	}
	data, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("encode ping: %v", err)
	}
	return data
}

func TestDispatchUnknownHandler(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(newTestTable(t), registry)

	result := d.Dispatch(context.Background(), encodePing(t, 1), Endpoint{Address: "127.0.0.1", Port: 9000})
	if result.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %v, want Errored (no handler registered)", result.Outcome)
	}
}

func TestDispatchHandlesAndResponds(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(func() TypeHandler {
		return HandlerForType(wire.TypePingRequest, func(ctx *Context, msg wire.Message) (wire.Message, error) {
			req := msg.(*wire.PingRequest)
			return wire.Respond(req, wire.TypePongResponse, map[string]interface{}{"value": req.Value})
		})
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(newTestTable(t), registry)
	result := d.Dispatch(context.Background(), encodePing(t, 42), Endpoint{Address: "127.0.0.1", Port: 9000})

	if result.Outcome != OutcomeDone {
		t.Fatalf("outcome = %v, want Done: %v", result.Outcome, result.Err)
	}
	if result.ResponseBytes == nil {
		t.Fatal("expected a response to be encoded")
	}

	resp, err := wire.Decode(result.ResponseBytes)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	pong, ok := resp.(*wire.PongResponse)
	if !ok {
		t.Fatalf("response is %T, want *wire.PongResponse", resp)
	}
	if pong.Value != 42 {
		t.Fatalf("pong value = %d, want 42", pong.Value)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(func() TypeHandler {
		return HandlerForType(wire.TypePingRequest, func(ctx *Context, msg wire.Message) (wire.Message, error) {
			panic("boom")
		})
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(newTestTable(t), registry)
	result := d.Dispatch(context.Background(), encodePing(t, 1), Endpoint{Address: "127.0.0.1", Port: 9000})

	if result.Outcome != OutcomeErrored {
		t.Fatalf("outcome = %v, want Errored after a handler panic", result.Outcome)
	}
	if result.Err == nil {
		t.Fatal("expected the recovered panic to surface as an error")
	}
}

func TestDispatchRejectsOversizedDatagram(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(newTestTable(t), registry, WithMaxDatagramSize(8))

	result := d.Dispatch(context.Background(), encodePing(t, 1), Endpoint{Address: "127.0.0.1", Port: 9000})
	if result.Outcome != OutcomeErrored {
		t.Fatal("expected a datagram exceeding the configured max to be rejected")
	}
}

func TestDispatchInsertsSenderIntoRoutingTable(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(func() TypeHandler {
		return HandlerForType(wire.TypePingRequest, func(ctx *Context, msg wire.Message) (wire.Message, error) {
			return nil, nil
		})
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	table := newTestTable(t)
	d := NewDispatcher(table, registry)

	senderID, err := nodeid.Generate()
	if err != nil {
		t.Fatalf("generate sender id: %v", err)
	}
	msg, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": uint32(1)})
	if err != nil {
		t.Fatalf("new ping: %v", err)
	}
	h := msg.Header()
	h.SenderNodeID = senderID
	msg.SetHeader(h)
	data, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	sender := Endpoint{Address: "127.0.0.1", Port: 9001}
	result := d.Dispatch(context.Background(), data, sender)
	if result.Outcome != OutcomeDone {
		t.Fatalf("outcome = %v, want Done: %v", result.Outcome, result.Err)
	}

	found := table.Find(senderID)
	if found == nil {
		t.Fatal("expected the sender to be inserted into the routing table")
	}
	if found.Address != sender.Address || found.Port != sender.Port {
		t.Fatalf("inserted contact = %s:%d, want %s:%d", found.Address, found.Port, sender.Address, sender.Port)
	}
}
