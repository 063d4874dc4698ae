package peer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/wire"
)

// pendingCall is a request awaiting its correlated response.
type pendingCall struct {
	resp chan wire.Message
}

// Client sends a request over a Transport and blocks for the response
// carrying a matching request_guid, the way a synchronous RPC call
// would. It owns no socket of its own: a Peer feeds it every inbound
// datagram via Deliver, and Client only needs Send from the Transport.
type Client struct {
	transport Transport
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingCall
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithClientLogger attaches a zap logger. Defaults to zap.NewNop().
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithClientTimeout overrides the default 10-second response wait.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient builds a Client that sends over transport.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		logger:    zap.NewNop(),
		timeout:   10 * time.Second,
		pending:   make(map[uuid.UUID]*pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends req to to and blocks until a response correlated by
// request_guid arrives, ctx is done, or the client's timeout elapses —
// whichever comes first. The caller must have wired Deliver to receive
// every inbound datagram the peer's serving loop decodes, or Call will
// always time out.
func (c *Client) Call(ctx context.Context, req wire.Message, to Endpoint) (wire.Message, error) {
	data, err := wire.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("peer: client encode: %w", err)
	}

	call := &pendingCall{resp: make(chan wire.Message, 1)}
	guid := req.Header().Guid

	c.mu.Lock()
	c.pending[guid] = call
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, guid)
		c.mu.Unlock()
	}()

	if err := c.transport.Send(ctx, data, to); err != nil {
		return nil, fmt.Errorf("peer: client send: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-call.resp:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("peer: client call to %s timed out after %s: %w", to, c.timeout, kaderr.ErrTimeout)
	}
}

// Deliver hands an inbound message to any outstanding Call waiting on
// its request_guid. It is a no-op (false) if nothing is waiting — the
// caller should still run the message through the normal dispatcher in
// that case, since an unsolicited request uses the same wire format as
// a correlated response.
func (c *Client) Deliver(msg wire.Message) bool {
	guid := msg.Header().RequestGuid
	if guid == uuid.Nil {
		return false
	}

	c.mu.Lock()
	call, ok := c.pending[guid]
	c.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case call.resp <- msg:
	default:
		c.logger.Warn("peer: dropped duplicate correlated response", zap.String("request_guid", guid.String()))
	}
	return true
}
