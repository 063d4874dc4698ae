package peer

import (
	"context"
	"fmt"
)

// MaxDatagramSize is the largest UDP payload the dispatcher accepts.
// Larger datagrams are dropped without being decoded.
const MaxDatagramSize = 8192

// Endpoint is a datagram source/destination: an address and a port.
// Kept as a plain value rather than *net.UDPAddr so Transport stays a
// pure interface boundary: a sink/source of opaque byte buffers with
// (addr, port) endpoints.
type Endpoint struct {
	Address string
	Port    int
}

// String renders "address:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// Transport is the datagram transport collaborator, modeled purely as
// the interface the dispatcher and client need. A concrete UDP
// implementation is provided in udp_transport.go as thin glue so the
// module is runnable end to end; it is not part of the
// routing/framing/dispatch core.
type Transport interface {
	// Receive blocks for the next datagram, or returns ctx.Err() once
	// ctx is done.
	Receive(ctx context.Context) (data []byte, from Endpoint, err error)

	// Send writes a single datagram to to.
	Send(ctx context.Context, data []byte, to Endpoint) error

	// LocalEndpoint reports the transport's own bound endpoint.
	LocalEndpoint() Endpoint

	// Close releases the transport's resources. Safe to call once.
	Close() error
}
