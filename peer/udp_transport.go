package peer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// UDPTransport is a thin net.UDPConn-backed Transport. It exists so the
// module is runnable end to end; the dispatch/framing/routing core it
// feeds treats it only through the Transport interface.
type UDPTransport struct {
	conn *net.UDPConn
}

// ListenUDP binds a UDP socket on network ("udp", "udp4" or "udp6") at
// address (host:port, or :port to bind all interfaces).
func ListenUDP(network, address string) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("peer: resolve %s: %w", address, err)
	}
	conn, err := net.ListenUDP(network, addr)
	if err != nil {
		return nil, fmt.Errorf("peer: listen %s: %w", address, err)
	}
	return &UDPTransport{conn: conn}, nil
}

// Receive reads the next datagram. A cancelled ctx unblocks a pending
// read only through ctx's deadline or Close; once the read fails with
// ctx done, ctx.Err() is returned. The buffer holds one byte more than
// MaxDatagramSize so that an oversized datagram arrives longer than the
// limit and the dispatcher drops it.
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, Endpoint, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(dl)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}

	buf := make([]byte, MaxDatagramSize+1)
	n, raddr, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Endpoint{}, ctx.Err()
		}
		return nil, Endpoint{}, err
	}
	return buf[:n], endpointFromUDPAddr(raddr), nil
}

func (t *UDPTransport) Send(ctx context.Context, data []byte, to Endpoint) error {
	addr, err := net.ResolveUDPAddr(t.conn.LocalAddr().Network(), to.String())
	if err != nil {
		return fmt.Errorf("peer: resolve %s: %w", to, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
	} else {
		_ = t.conn.SetWriteDeadline(time.Now().Add(15 * time.Second))
	}
	_, err = t.conn.WriteToUDP(data, addr)
	return err
}

func (t *UDPTransport) LocalEndpoint() Endpoint {
	return endpointFromUDPAddr(t.conn.LocalAddr().(*net.UDPAddr))
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func endpointFromUDPAddr(addr *net.UDPAddr) Endpoint {
	return Endpoint{Address: addr.IP.String(), Port: addr.Port}
}

// ParseEndpoint parses "host:port" into an Endpoint.
func ParseEndpoint(hostPort string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return Endpoint{}, fmt.Errorf("peer: parse endpoint %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("peer: parse endpoint %q: %w", hostPort, err)
	}
	return Endpoint{Address: host, Port: port}, nil
}
