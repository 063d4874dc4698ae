package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/kademlia"
	"github.com/MildC/kad-core/nodeid"
	"github.com/MildC/kad-core/wire"
)

// Peer ties a routing table, handler registry, dispatcher, client, and
// transport into a single addressable node: the package's top-level
// entry point.
type Peer struct {
	id        nodeid.NodeId
	table     *kademlia.RoutingTable
	handlers  *Registry
	dispatch  *Dispatcher
	client    *Client
	transport Transport
	logger    *zap.Logger
	cfg       *Config

	workerTokens chan struct{}

	mu         sync.Mutex
	closed     bool
	closeOnce  sync.Once
	closeErr   error
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// closeTransport closes the transport exactly once, regardless of
// whether it's triggered by Close or by Serve's ctx-cancellation
// watcher racing it.
func (p *Peer) closeTransport() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.transport.Close()
	})
	return p.closeErr
}

// New builds a Peer bound to transport, with id as its own identity
// (generated if the zero value). cfg may be nil for defaults.
func New(id nodeid.NodeId, transport Transport, cfg *Config, logger *zap.Logger) (*Peer, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if id.IsZero() {
		generated, err := nodeid.Generate()
		if err != nil {
			return nil, fmt.Errorf("peer: generate node id: %w", err)
		}
		id = generated
	}

	tableOpts := []kademlia.Option{
		kademlia.WithK(cfg.K),
		kademlia.WithDepth(cfg.RelaxedSplitDepth),
		kademlia.WithLogger(logger),
	}
	if cfg.OnRoutingTableSplit != nil {
		tableOpts = append(tableOpts, kademlia.WithSplitObserver(cfg.OnRoutingTableSplit))
	}
	table := kademlia.New(id, tableOpts...)

	handlers := NewRegistry()
	dispatchOpts := []DispatcherOption{
		WithDispatcherLogger(logger),
		WithMaxDatagramSize(cfg.MaxDatagramSize),
	}
	if cfg.AuditIndexer != nil {
		dispatchOpts = append(dispatchOpts, WithAuditSink(cfg.AuditIndexer))
	}
	dispatcher := NewDispatcher(table, handlers, dispatchOpts...)

	client := NewClient(transport, WithClientLogger(logger), WithClientTimeout(cfg.ClientTimeout))

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Peer{
		id:           id,
		table:        table,
		handlers:     handlers,
		dispatch:     dispatcher,
		client:       client,
		transport:    transport,
		logger:       logger,
		cfg:          cfg,
		workerTokens: make(chan struct{}, workers),
	}, nil
}

// ID returns this peer's own NodeId.
func (p *Peer) ID() nodeid.NodeId { return p.id }

// RoutingTable exposes the peer's routing table for read access by
// callers layering a lookup protocol on top.
func (p *Peer) RoutingTable() *kademlia.RoutingTable { return p.table }

// Client exposes the peer's synchronous request client.
func (p *Peer) Client() *Client { return p.client }

// Register adds a handler factory to the peer's dispatch table. Must be
// called before Serve.
func (p *Peer) Register(factory func() TypeHandler) error {
	return p.handlers.Register(factory)
}

// Serve runs the receive loop until ctx is cancelled or Close is
// called, processing up to cfg.Workers datagrams concurrently. A
// worker-token channel bounds concurrency the same way a fixed-size
// semaphore does: Serve blocks acquiring a token before spawning the
// goroutine that runs Dispatch, so the loop never spawns more than
// Workers in flight at once.
func (p *Peer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("peer: serving", zap.String("node_id", p.id.String()), zap.Stringer("local", p.transport.LocalEndpoint()))

	// net.UDPConn.Read doesn't observe ctx cancellation on its own;
	// closing the transport is what actually unblocks a Receive parked
	// waiting for the next datagram.
	go func() {
		<-ctx.Done()
		_ = p.closeTransport()
	}()

receiveLoop:
	for {
		data, from, err := p.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break receiveLoop
			}
			p.logger.Warn("peer: receive error", zap.Error(err))
			continue
		}

		select {
		case p.workerTokens <- struct{}{}:
		case <-ctx.Done():
			break receiveLoop
		}

		p.wg.Add(1)
		go func(data []byte, from Endpoint) {
			defer p.wg.Done()
			defer func() { <-p.workerTokens }()
			p.handleOne(ctx, data, from)
		}(data, from)
	}

	p.wg.Wait()
	return ctx.Err()
}

// handleOne routes one datagram to whichever of this peer's two
// consumers is waiting for it: a Client.Call correlated by
// request_guid takes priority, since it identifies a specific
// in-flight request; anything else goes through the handler registry.
func (p *Peer) handleOne(ctx context.Context, data []byte, from Endpoint) {
	if msg, err := wire.Decode(data); err == nil {
		if p.client.Deliver(msg) {
			return
		}
	}

	result := p.dispatch.Dispatch(ctx, data, from)
	if result.Outcome == OutcomeErrored {
		if p.cfg.OnUnhandledMessage != nil && errors.Is(result.Err, kaderr.ErrNoHandler) {
			p.cfg.OnUnhandledMessage(result.TypeTag, from)
		}
		return
	}

	if result.ResponseBytes != nil {
		if err := p.transport.Send(ctx, result.ResponseBytes, from); err != nil {
			p.logger.Warn("peer: failed to send response", zap.Error(err), zap.Stringer("to", from))
		}
	}
}

// Call is a thin convenience wrapper over Client.Call using this
// peer's transport.
func (p *Peer) Call(ctx context.Context, req wire.Message, to Endpoint) (wire.Message, error) {
	return p.client.Call(ctx, req, to)
}

// Close signals Serve to stop and releases the transport. Safe to call
// once; a second call is a no-op. Combines the transport close error
// with any shutdown-grace timeout into a single error via multierr, the
// way a dispatcher tearing down several owned resources would.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	closeErr := p.closeTransport()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		err = multierr.Append(err, fmt.Errorf("peer: shutdown grace period elapsed with handlers still in flight"))
	}

	return multierr.Append(err, closeErr)
}
