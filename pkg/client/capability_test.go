package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
)

// blockingFetch hands out one result per call and counts calls
type blockingFetch struct {
	calls   atomic.Int32
	started chan struct{}
	results chan []string
}

func newBlockingFetch() *blockingFetch {
	return &blockingFetch{
		started: make(chan struct{}, 16),
		results: make(chan []string, 16),
	}
}

func (f *blockingFetch) fetch(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	f.started <- struct{}{}
	select {
	case list := <-f.results:
		return list, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestStore(t *testing.T, fetch func(context.Context) ([]string, error)) (*capabilityStore[string], func(func()) bool) {
	t.Helper()

	var wg sync.WaitGroup
	spawn := func(fn func()) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
		return true
	}
	store := newCapabilityStore(KindTools, fetch, fastRefetch(), logging.NewNop(), observability.NopMetrics{})
	t.Cleanup(func() {
		wg.Wait()
		store.close()
	})
	return store, spawn
}

func TestCapabilityStoreStartsPending(t *testing.T) {
	f := newBlockingFetch()
	store, _ := newTestStore(t, f.fetch)

	assert.Equal(t, StatusPending, store.subject.Value().Kind())
	store.refresh()
	assert.Equal(t, int32(0), f.calls.Load(), "no fetch before the handshake")
}

func TestCapabilityStoreUnsupported(t *testing.T) {
	f := newBlockingFetch()
	store, spawn := newTestStore(t, f.fetch)

	store.seed(context.Background(), spawn, false)
	store.refresh()

	assert.Equal(t, StatusUnsupported, store.subject.Value().Kind())
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestCapabilityStoreCoalescesRefreshes(t *testing.T) {
	f := newBlockingFetch()
	store, spawn := newTestStore(t, f.fetch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.seed(ctx, spawn, true)
	<-f.started

	for i := 0; i < 5; i++ {
		store.refresh()
	}
	f.results <- []string{"stale"}
	<-f.started
	f.results <- []string{"fresh"}

	require.Eventually(t, func() bool {
		return len(store.subject.Value().List()) == 1 && store.subject.Value().List()[0] == "fresh"
	}, waitTimeout, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), f.calls.Load(), "five refreshes during a fetch collapse into one")
}

func TestCapabilityStoreGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	store, spawn := newTestStore(t, func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, mcperrors.NewError(mcperrors.CodeInternalError, "unavailable",
			mcperrors.CategoryInternal, mcperrors.SeverityError)
	})

	store.seed(context.Background(), spawn, true)

	require.Eventually(t, func() bool {
		return calls.Load() == int32(fastRefetch().MaxRetries)+1
	}, waitTimeout, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(fastRefetch().MaxRetries)+1, calls.Load())
	assert.Equal(t, StatusPending, store.subject.Value().Kind(), "the last value is kept")
}

func TestCapabilityStoreStopsOnSessionErrors(t *testing.T) {
	var calls atomic.Int32
	store, spawn := newTestStore(t, func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, mcperrors.ConnectionLost("memory", nil)
	})

	store.seed(context.Background(), spawn, true)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a closed transport is not retried")
}

func TestCapabilityStatus(t *testing.T) {
	assert.Equal(t, "pending", Pending[int]().String())
	assert.Nil(t, Unsupported[int]().List())
	assert.False(t, Unsupported[int]().IsSupported())

	empty := Supported[int](nil)
	assert.True(t, empty.IsSupported())
	assert.NotNil(t, empty.List())
	assert.Empty(t, empty.List())

	assert.Equal(t, "resource_templates", KindResourceTemplates.String())
}
