package peer

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/kademlia"
	"github.com/MildC/kad-core/wire"
)

// Outcome is the terminal state of one datagram's trip through the
// dispatcher's
// Received -> Decoding -> Dispatching -> Responding? -> Done|Errored
// state machine.
type Outcome int

const (
	// OutcomeDone means the datagram was decoded and dispatched
	// successfully (with or without a response).
	OutcomeDone Outcome = iota
	// OutcomeErrored means the datagram was dropped at some phase; Err
	// names why.
	OutcomeErrored
)

// Result describes how one datagram's dispatch ended.
type Result struct {
	Outcome       Outcome
	Err           error
	TypeTag       uint32
	Sender        Endpoint
	ResponseBytes []byte
}

// Dispatcher decodes inbound datagrams via the wire registry, routes
// them to a registered TypeHandler, and encodes any response the
// handler produced. Exceptions raised during any phase are caught here
// and surfaced as an Errored Result; they never propagate out of
// Dispatch, so a single bad datagram or handler bug never terminates
// the peer's serving loop.
type Dispatcher struct {
	table    *kademlia.RoutingTable
	handlers *Registry
	logger   *zap.Logger
	audit    AuditSink
	maxSize  int
}

// DispatcherOption configures a Dispatcher at construction.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger attaches a zap logger. Defaults to zap.NewNop().
func WithDispatcherLogger(logger *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithAuditSink attaches an optional dispatch-audit sink.
func WithAuditSink(sink AuditSink) DispatcherOption {
	return func(d *Dispatcher) { d.audit = sink }
}

// WithMaxDatagramSize overrides MaxDatagramSize.
func WithMaxDatagramSize(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxSize = n }
}

// NewDispatcher builds a Dispatcher over table and handlers.
func NewDispatcher(table *kademlia.RoutingTable, handlers *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		table:    table,
		handlers: handlers,
		logger:   zap.NewNop(),
		maxSize:  MaxDatagramSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one datagram through the full state machine.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte, sender Endpoint) Result {
	// Received
	if len(data) > d.maxSize {
		err := fmt.Errorf("peer: datagram of %d bytes exceeds max %d: %w", len(data), d.maxSize, kaderr.ErrDecode)
		d.logger.Warn("peer: dropping oversized datagram", zap.Int("size", len(data)), zap.Stringer("sender", sender))
		d.recordAudit(ctx, 0, sender, "oversized")
		return Result{Outcome: OutcomeErrored, Err: err, Sender: sender}
	}
	if len(data) < 4 {
		err := fmt.Errorf("peer: datagram too short for a type tag: %w", kaderr.ErrUnknownType)
		d.logger.Warn("peer: dropping datagram", zap.Error(err), zap.Stringer("sender", sender))
		d.recordAudit(ctx, 0, sender, "unknown_type")
		return Result{Outcome: OutcomeErrored, Err: err, Sender: sender}
	}
	typeTag := binary.BigEndian.Uint32(data[0:4])

	// Decoding
	msg, err := wire.Decode(data)
	if err != nil {
		d.logger.Warn("peer: failed to decode datagram", zap.Error(err), zap.Uint32("type_tag", typeTag), zap.Stringer("sender", sender))
		d.recordAudit(ctx, typeTag, sender, "decode_error")
		return Result{Outcome: OutcomeErrored, Err: err, TypeTag: typeTag, Sender: sender}
	}

	// Dispatching
	factory, ok := d.handlers.lookup(msg.TypeTag())
	if !ok {
		err := fmt.Errorf("peer: type %d: %w", msg.TypeTag(), kaderr.ErrNoHandler)
		d.logger.Warn("peer: no handler registered for message type", zap.Uint32("type_tag", msg.TypeTag()), zap.Stringer("sender", sender))
		d.recordAudit(ctx, msg.TypeTag(), sender, "no_handler")
		return Result{Outcome: OutcomeErrored, Err: err, TypeTag: msg.TypeTag(), Sender: sender}
	}

	handler := factory()
	hctx := &Context{RoutingTable: d.table, Sender: sender, Logger: d.logger}

	resp, herr := d.invoke(handler, hctx, msg)

	// Side flow: any handled request may trigger a routing-table
	// insert of the sender once its node id is available in the
	// header.
	if msg.Header().HasSender() {
		d.table.Insert(sender.Address, sender.Port, msg.Header().SenderNodeID)
	}

	if herr != nil {
		d.logger.Error("peer: handler error", zap.Error(herr), zap.Uint32("type_tag", msg.TypeTag()), zap.Stringer("sender", sender))
		d.recordAudit(ctx, msg.TypeTag(), sender, "handler_error")
		return Result{Outcome: OutcomeErrored, Err: herr, TypeTag: msg.TypeTag(), Sender: sender}
	}

	// Responding
	var respBytes []byte
	if resp != nil {
		respBytes, err = wire.Encode(resp)
		if err != nil {
			d.logger.Error("peer: failed to encode response", zap.Error(err), zap.Uint32("type_tag", msg.TypeTag()))
			d.recordAudit(ctx, msg.TypeTag(), sender, "encode_error")
			return Result{Outcome: OutcomeErrored, Err: err, TypeTag: msg.TypeTag(), Sender: sender}
		}
	}

	d.recordAudit(ctx, msg.TypeTag(), sender, "done")
	return Result{Outcome: OutcomeDone, TypeTag: msg.TypeTag(), Sender: sender, ResponseBytes: respBytes}
}

// invoke calls the handler, converting a panic into an error so it
// reaches Dispatch's caller as an Errored Result instead of crashing
// the serving loop.
func (d *Dispatcher) invoke(h TypeHandler, ctx *Context, msg wire.Message) (resp wire.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("peer: handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, msg)
}

func (d *Dispatcher) recordAudit(ctx context.Context, typeTag uint32, sender Endpoint, outcome string) {
	if d.audit == nil {
		return
	}
	rec := AuditRecord{TypeTag: typeTag, Sender: sender.String(), Outcome: outcome, Timestamp: time.Now().UTC()}
	// Indexing runs on the caller's goroutine but under its own short
	// deadline, independent of the dispatch's own context lifetime: an
	// audit write holds up the dispatch for at most 2 seconds.
	auditCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.audit.Index(auditCtx, rec)
	_ = ctx
}
