package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ajitpratap0/mcp-client-go/pkg/protocol"
)

// progressRouter maps live progress tokens to the callbacks of their calls
type progressRouter struct {
	mu       sync.Mutex
	handlers map[protocol.ProgressToken]ProgressFunc
}

func newProgressRouter() *progressRouter {
	return &progressRouter{
		handlers: make(map[protocol.ProgressToken]ProgressFunc),
	}
}

// register issues a fresh token for fn
func (r *progressRouter) register(fn ProgressFunc) protocol.ProgressToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		token := protocol.ProgressToken(uuid.NewString())
		if _, live := r.handlers[token]; !live {
			r.handlers[token] = fn
			return token
		}
	}
}

// unregister drops token. It is safe to call more than once.
func (r *progressRouter) unregister(token protocol.ProgressToken) {
	r.mu.Lock()
	delete(r.handlers, token)
	r.mu.Unlock()
}

// dispatch runs the callback registered for params.ProgressToken on the
// calling goroutine. It reports false for unknown tokens.
func (r *progressRouter) dispatch(params protocol.ProgressParams) bool {
	r.mu.Lock()
	fn, ok := r.handlers[params.ProgressToken]
	r.mu.Unlock()

	if !ok {
		return false
	}
	fn(params.Progress, params.Total, params.Message)
	return true
}

func (r *progressRouter) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
