package peer

import (
	"testing"

	"github.com/MildC/kad-core/wire"
)

type multiTypeHandler struct{}

func (multiTypeHandler) MessageTypes() []uint32 { return nil }
func (multiTypeHandler) Handle(ctx *Context, msg wire.Message) (wire.Message, error) {
	return nil, nil
}

func TestRegistryRejectsNoDeclaredTypes(t *testing.T) {
	r := NewRegistry()
	err := r.Register(func() TypeHandler { return multiTypeHandler{} })
	if err == nil {
		t.Fatal("expected error registering a handler with no declared message types")
	}
}

func TestRegistryRejectsDuplicateType(t *testing.T) {
	r := NewRegistry()
	factory := func() TypeHandler {
		return HandlerForType(wire.TypePingRequest, func(ctx *Context, msg wire.Message) (wire.Message, error) {
			return nil, nil
		})
	}
	if err := r.Register(factory); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(factory); err == nil {
		t.Fatal("expected error re-registering a handler for an already-registered type")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	called := false
	factory := func() TypeHandler {
		return HandlerForType(wire.TypePingRequest, func(ctx *Context, msg wire.Message) (wire.Message, error) {
			called = true
			return nil, nil
		})
	}
	if err := r.Register(factory); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := r.lookup(wire.TypePingRequest)
	if !ok {
		t.Fatal("expected lookup to find the registered factory")
	}
	if _, err := got().Handle(nil, nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !called {
		t.Fatal("expected the handler function to run")
	}

	if _, ok := r.lookup(wire.TypePongResponse); ok {
		t.Fatal("expected lookup to miss an unregistered type")
	}
}
