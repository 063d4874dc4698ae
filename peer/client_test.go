package peer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MildC/kad-core/wire"
)

// loopbackTransport hands anything Send writes straight back out of
// Receive, so a test Client can Call without a real socket.
type loopbackTransport struct {
	mu   sync.Mutex
	sent chan []byte
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{sent: make(chan []byte, 8)}
}

func (t *loopbackTransport) Receive(ctx context.Context) ([]byte, Endpoint, error) {
	select {
	case data := <-t.sent:
		return data, Endpoint{Address: "127.0.0.1", Port: 9000}, nil
	case <-ctx.Done():
		return nil, Endpoint{}, ctx.Err()
	}
}

func (t *loopbackTransport) Send(ctx context.Context, data []byte, to Endpoint) error {
	t.sent <- data
	return nil
}

func (t *loopbackTransport) LocalEndpoint() Endpoint { return Endpoint{Address: "127.0.0.1", Port: 0} }
func (t *loopbackTransport) Close() error            { return nil }

func TestClientCallTimesOutWithoutDelivery(t *testing.T) {
	transport := newLoopbackTransport()
	client := NewClient(transport, WithClientTimeout(30*time.Millisecond))

	req, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": uint32(1)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = client.Call(context.Background(), req, Endpoint{Address: "127.0.0.1", Port: 9000})
	if err == nil {
		t.Fatal("expected Call to time out when nothing ever Delivers a response")
	}
}

func TestClientCallDeliveredResponse(t *testing.T) {
	transport := newLoopbackTransport()
	client := NewClient(transport, WithClientTimeout(time.Second))

	req, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": uint32(7)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Simulate the peer's receive loop: decode whatever Send wrote and
	// feed it back in as the correlated response.
	go func() {
		data := <-transport.sent
		sent, err := wire.Decode(data)
		if err != nil {
			t.Errorf("decode sent request: %v", err)
			return
		}
		resp, err := wire.Respond(sent, wire.TypePongResponse, map[string]interface{}{"value": uint32(7)})
		if err != nil {
			t.Errorf("respond: %v", err)
			return
		}
		client.Deliver(resp)
	}()

	resp, err := client.Call(context.Background(), req, Endpoint{Address: "127.0.0.1", Port: 9000})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	pong, ok := resp.(*wire.PongResponse)
	if !ok {
		t.Fatalf("response is %T, want *wire.PongResponse", resp)
	}
	if pong.Value != 7 {
		t.Fatalf("pong value = %d, want 7", pong.Value)
	}
}

func TestClientDeliverIgnoresUncorrelatedMessage(t *testing.T) {
	transport := newLoopbackTransport()
	client := NewClient(transport)

	msg, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": uint32(1)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if client.Deliver(msg) {
		t.Fatal("expected Deliver to report false for a message with no pending call")
	}
}
