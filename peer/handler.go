package peer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/kademlia"
	"github.com/MildC/kad-core/wire"
)

// Context is the per-dispatch state a handler sees: the shared routing
// table and the datagram's origin endpoint. A fresh handler instance is
// built per dispatch, and the context is passed in as a small struct of
// references rather than constructed piecemeal.
type Context struct {
	RoutingTable *kademlia.RoutingTable
	Sender       Endpoint
	Logger       *zap.Logger
}

// TypeHandler is a "handler class": it declares the message types it
// consumes and a single typed entry point. MessageTypes() names that
// set explicitly rather than discovering it via reflection over
// annotated methods.
type TypeHandler interface {
	MessageTypes() []uint32
	Handle(ctx *Context, msg wire.Message) (wire.Message, error)
}

// HandlerFunc adapts a plain function into a TypeHandler for a single
// message type — the common case, where a closure taking
// (context, message) is all a handler needs.
type HandlerFunc func(ctx *Context, msg wire.Message) (wire.Message, error)

type funcHandler struct {
	typeTag uint32
	fn      HandlerFunc
}

func (h funcHandler) MessageTypes() []uint32 { return []uint32{h.typeTag} }
func (h funcHandler) Handle(ctx *Context, msg wire.Message) (wire.Message, error) {
	return h.fn(ctx, msg)
}

// HandlerForType wraps fn as a TypeHandler that handles only typeTag.
func HandlerForType(typeTag uint32, fn HandlerFunc) TypeHandler {
	return funcHandler{typeTag: typeTag, fn: fn}
}

// Registry is a peer's message-type -> handler-class table. A handler
// class is registered via its factory; the registry calls the factory
// once at registration time to discover MessageTypes(). A fresh handler
// instance is then built per dispatched message via the same factory:
// construct, populate its Context, invoke, discard.
type Registry struct {
	mu        sync.RWMutex
	factories map[uint32]func() TypeHandler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[uint32]func() TypeHandler)}
}

// Register adds factory's handled types to the registry. Double
// registration of any one message type is a hard error at registration
// time rather than a silent overwrite.
func (r *Registry) Register(factory func() TypeHandler) error {
	probe := factory()
	types := probe.MessageTypes()
	if len(types) == 0 {
		return fmt.Errorf("peer: handler declares no message types: %w", kaderr.ErrRoutingTable)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range types {
		if _, exists := r.factories[t]; exists {
			return fmt.Errorf("peer: handler for message type %d already registered: %w", t, kaderr.ErrRoutingTable)
		}
	}
	for _, t := range types {
		r.factories[t] = factory
	}
	return nil
}

func (r *Registry) lookup(typeTag uint32) (func() TypeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeTag]
	return f, ok
}
