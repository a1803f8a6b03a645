package transport

import (
	"context"
	"io"
	"sync"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

const memoryQueueSize = 256

// InMemoryTransport is one end of a connected in-process pair. Messages are
// encoded on Send and decoded on Receive, exactly as a stream transport would.
type InMemoryTransport struct {
	name      string
	inbox     chan []byte
	peer      *InMemoryTransport
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryTransportPair returns two transports connected to each other
func NewInMemoryTransportPair() (*InMemoryTransport, *InMemoryTransport) {
	a := &InMemoryTransport{name: "memory", inbox: make(chan []byte, memoryQueueSize), done: make(chan struct{})}
	b := &InMemoryTransport{name: "memory", inbox: make(chan []byte, memoryQueueSize), done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

// Name implements Named
func (t *InMemoryTransport) Name() string {
	return t.name
}

// Start is a no-op; the pair is connected from creation
func (t *InMemoryTransport) Start(ctx context.Context) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
		return nil
	}
}

// Send encodes msg and queues it for the peer
func (t *InMemoryTransport) Send(ctx context.Context, msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return t.SendRaw(ctx, data)
}

// SendRaw queues raw bytes for the peer without validating them
func (t *InMemoryTransport) SendRaw(ctx context.Context, data []byte) error {
	select {
	case <-t.done:
		return ErrClosed
	case <-t.peer.done:
		return ErrClosed
	default:
	}

	select {
	case t.peer.inbox <- data:
		return nil
	case <-t.done:
		return ErrClosed
	case <-t.peer.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message sent by the peer. Once the peer closes,
// queued messages are still delivered before io.EOF.
func (t *InMemoryTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case data := <-t.inbox:
		return decodeFrame(data)
	case <-t.done:
		return nil, ErrClosed
	case <-t.peer.done:
		select {
		case data := <-t.inbox:
			return decodeFrame(data)
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes this end. The peer sees io.EOF after draining its queue.
func (t *InMemoryTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	return nil
}

func decodeFrame(data []byte) (*protocol.Message, error) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		return nil, &MalformedMessageError{Data: data, Err: err}
	}
	return msg, nil
}
