package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-client-go/pkg/transport"
)

const waitTimeout = 2 * time.Second

// noReply makes a fakeServer handler leave the request unanswered; the test
// answers it later with respond.
type noReply struct{}

// serverHandler answers one client request on the fake server's read loop
type serverHandler func(s *fakeServer, req *protocol.Message) (interface{}, *protocol.Error)

// fakeServer is a scripted MCP server on one end of an in-memory pair
type fakeServer struct {
	t  *testing.T
	tr *transport.InMemoryTransport

	mu       sync.Mutex
	handlers map[string]serverHandler
	queues   map[string]chan *protocol.Message
	counts   map[string]int

	done chan struct{}
}

// newFakeServer starts a server answering initialize with caps and returns the
// transport end for the client.
func newFakeServer(t *testing.T, caps protocol.ServerCapabilities) (*fakeServer, transport.Transport) {
	t.Helper()

	clientEnd, serverEnd := transport.NewInMemoryTransportPair()
	s := &fakeServer{
		t:        t,
		tr:       serverEnd,
		handlers: make(map[string]serverHandler),
		queues:   make(map[string]chan *protocol.Message),
		counts:   make(map[string]int),
		done:     make(chan struct{}),
	}

	s.handle(protocol.MethodInitialize, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.InitializeResult{
			ProtocolVersion: protocol.LatestProtocolVersion,
			Capabilities:    caps,
			ServerInfo:      protocol.Implementation{Name: "fake-server", Version: "0.1.0"},
			Instructions:    "be nice",
		}, nil
	})
	s.handle(protocol.MethodPing, func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.EmptyResult{}, nil
	})

	go s.loop()
	t.Cleanup(s.close)
	return s, clientEnd
}

func (s *fakeServer) handle(method string, h serverHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

func (s *fakeServer) loop() {
	defer close(s.done)

	for {
		msg, err := s.tr.Receive(context.Background())
		if err != nil {
			if transport.IsTerminal(err) {
				return
			}
			continue
		}

		key := msg.Method
		if msg.Kind() == protocol.KindResponse {
			key = "response:" + msg.ID.String()
		}

		s.mu.Lock()
		s.counts[key]++
		h := s.handlers[msg.Method]
		s.mu.Unlock()

		if msg.Kind() == protocol.KindRequest && h != nil {
			result, rpcErr := h(s, msg)
			switch {
			case rpcErr != nil:
				s.respondError(*msg.ID, rpcErr.Code, rpcErr.Message)
			default:
				if _, hold := result.(noReply); !hold {
					s.respond(*msg.ID, result)
				}
			}
		}

		s.queue(key) <- msg
	}
}

func (s *fakeServer) queue(key string) chan *protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[key]
	if !ok {
		q = make(chan *protocol.Message, 256)
		s.queues[key] = q
	}
	return q
}

// next waits for the next message the client sent for method
func (s *fakeServer) next(method string) *protocol.Message {
	s.t.Helper()
	select {
	case msg := <-s.queue(method):
		return msg
	case <-time.After(waitTimeout):
		s.t.Fatalf("timed out waiting for %s", method)
		return nil
	}
}

// response waits for the client's response to the server request id
func (s *fakeServer) response(id protocol.RequestID) *protocol.Message {
	s.t.Helper()
	return s.next("response:" + id.String())
}

func (s *fakeServer) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method]
}

func (s *fakeServer) send(msg *protocol.Message) {
	if err := s.tr.Send(context.Background(), msg); err != nil {
		s.t.Logf("fake server send failed: %v", err)
	}
}

func (s *fakeServer) respond(id protocol.RequestID, result interface{}) {
	msg, err := protocol.NewResponse(id, result)
	require.NoError(s.t, err)
	s.send(msg)
}

func (s *fakeServer) respondError(id protocol.RequestID, code protocol.ErrorCode, message string) {
	msg, err := protocol.NewErrorResponse(id, code, message, nil)
	require.NoError(s.t, err)
	s.send(msg)
}

func (s *fakeServer) notify(method string, params interface{}) {
	msg, err := protocol.NewNotification(method, params)
	require.NoError(s.t, err)
	s.send(msg)
}

func (s *fakeServer) request(id protocol.RequestID, method string, params interface{}) {
	msg, err := protocol.NewRequest(id, method, params)
	require.NoError(s.t, err)
	s.send(msg)
}

func (s *fakeServer) close() {
	_ = s.tr.Close()
	<-s.done
}

// toolsHandler answers tools/list with the current tools
func toolsHandler(tools ...protocol.Tool) serverHandler {
	return func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.ListToolsResult{Tools: tools}, nil
	}
}

func promptsHandler(prompts ...protocol.Prompt) serverHandler {
	return func(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
		return protocol.ListPromptsResult{Prompts: prompts}, nil
	}
}

func holdHandler(*fakeServer, *protocol.Message) (interface{}, *protocol.Error) {
	return noReply{}, nil
}

func fastRefetch() RefetchPolicy {
	return RefetchPolicy{InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond, MaxRetries: 3}
}

// newTestClient creates a client on t that is closed when the test ends
func newTestClient(t *testing.T, tr transport.Transport, options ...Option) *Client {
	t.Helper()

	base := []Option{
		WithName("test-client"),
		WithVersion("0.0.1"),
		WithLogger(logging.NewNop()),
		WithRefetchPolicy(fastRefetch()),
	}
	c, err := New(tr, append(base, options...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// initialized creates a client and completes the handshake
func initialized(t *testing.T, tr transport.Transport, options ...Option) *Client {
	t.Helper()

	c := newTestClient(t, tr, options...)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	_, err := c.Initialize(ctx)
	require.NoError(t, err)
	return c
}

// roundTrip makes sure every message the server sent before it was processed by the client
func roundTrip(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, c.Ping(ctx))
}

// receive reads one value from sub or fails the test
func receive[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

// quiet asserts sub delivers nothing for a while
func quiet[T any](t *testing.T, sub *Subscription[T]) {
	t.Helper()
	select {
	case v, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected value %v", v)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func waitForKind[T any](t *testing.T, subject ReadOnlySubject[CapabilityStatus[T]], kind StatusKind) CapabilityStatus[T] {
	t.Helper()
	require.Eventually(t, func() bool {
		return subject.Value().Kind() == kind
	}, waitTimeout, 5*time.Millisecond)
	return subject.Value()
}

func decodeParams[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// scriptedTransport hands the client exactly the frames and errors a test
// pushes, and records what the client sends.
type scriptedTransport struct {
	incoming  chan scriptedFrame
	sent      chan *protocol.Message
	closed    chan struct{}
	closeOnce sync.Once
}

type scriptedFrame struct {
	msg *protocol.Message
	err error
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		incoming: make(chan scriptedFrame, 64),
		sent:     make(chan *protocol.Message, 64),
		closed:   make(chan struct{}),
	}
}

func (s *scriptedTransport) Start(context.Context) error { return nil }

func (s *scriptedTransport) Send(ctx context.Context, msg *protocol.Message) error {
	select {
	case <-s.closed:
		return transport.ErrClosed
	case s.sent <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *scriptedTransport) Receive(ctx context.Context) (*protocol.Message, error) {
	select {
	case f := <-s.incoming:
		return f.msg, f.err
	case <-s.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedTransport) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedTransport) push(msg *protocol.Message) {
	s.incoming <- scriptedFrame{msg: msg}
}

func (s *scriptedTransport) fail(err error) {
	s.incoming <- scriptedFrame{err: err}
}

func (s *scriptedTransport) nextSent(t *testing.T) *protocol.Message {
	t.Helper()
	select {
	case msg := <-s.sent:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the client to send")
		return nil
	}
}
