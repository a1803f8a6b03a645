package client

import (
	"sync"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// outcome is what a pending request resolves to: a response or a terminal error
type outcome struct {
	response *protocol.Message
	err      error
}

// pendingRequest is one client request awaiting its response
type pendingRequest struct {
	id     int64
	method string
	token  protocol.ProgressToken
	done   chan outcome
}

// correlationTable matches responses to the requests this client sent.
// Server-originated request ids never enter it.
type correlationTable struct {
	mu      sync.Mutex
	nextID  int64
	pending map[int64]*pendingRequest
	closed  error
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{
		pending: make(map[int64]*pendingRequest),
	}
}

// register allocates the next request id. It fails with the terminal error
// once the table has been failed.
func (t *correlationTable) register(method string, token protocol.ProgressToken) (*pendingRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return nil, t.closed
	}

	t.nextID++
	p := &pendingRequest{
		id:     t.nextID,
		method: method,
		token:  token,
		done:   make(chan outcome, 1),
	}
	t.pending[p.id] = p
	return p, nil
}

// resolve delivers resp to the request with its id. It returns the matched
// request, or nil when the id is unknown or already resolved.
func (t *correlationTable) resolve(resp *protocol.Message) *pendingRequest {
	if resp.ID == nil {
		return nil
	}
	id, ok := resp.ID.Int64()
	if !ok {
		return nil
	}

	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	p.done <- outcome{response: resp}
	return p
}

// remove forgets a request without resolving it
func (t *correlationTable) remove(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pending[id]
	delete(t.pending, id)
	return ok
}

// failAll resolves every pending request with err and rejects later registrations
func (t *correlationTable) failAll(err error) {
	t.mu.Lock()
	if t.closed == nil {
		t.closed = err
	}
	pending := t.pending
	t.pending = make(map[int64]*pendingRequest)
	t.mu.Unlock()

	for _, p := range pending {
		p.done <- outcome{err: err}
	}
}

func (t *correlationTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
