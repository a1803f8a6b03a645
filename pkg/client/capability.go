package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	mcperrors "github.com/ajitpratap0/mcp-client-go/pkg/errors"
	"github.com/ajitpratap0/mcp-client-go/pkg/logging"
	"github.com/ajitpratap0/mcp-client-go/pkg/observability"
)

// StatusKind tags a CapabilityStatus
type StatusKind int

const (
	// StatusPending means the server declared the capability and the list is not known yet
	StatusPending StatusKind = iota
	// StatusUnsupported means the server did not declare the capability. It is final.
	StatusUnsupported
	// StatusSupported means the list was fetched
	StatusSupported
)

func (k StatusKind) String() string {
	switch k {
	case StatusPending:
		return "pending"
	case StatusUnsupported:
		return "unsupported"
	case StatusSupported:
		return "supported"
	default:
		return "unknown"
	}
}

// CapabilityStatus is what the client currently knows about one server capability
type CapabilityStatus[T any] struct {
	kind StatusKind
	list []T
}

// Pending returns the status of a declared capability whose list is not known yet
func Pending[T any]() CapabilityStatus[T] {
	return CapabilityStatus[T]{kind: StatusPending}
}

// Unsupported returns the status of a capability the server did not declare
func Unsupported[T any]() CapabilityStatus[T] {
	return CapabilityStatus[T]{kind: StatusUnsupported}
}

// Supported returns the status of a fetched capability list
func Supported[T any](list []T) CapabilityStatus[T] {
	if list == nil {
		list = []T{}
	}
	return CapabilityStatus[T]{kind: StatusSupported, list: list}
}

// Kind returns the status tag
func (s CapabilityStatus[T]) Kind() StatusKind {
	return s.kind
}

// List returns the fetched items. It is nil unless the status is supported.
func (s CapabilityStatus[T]) List() []T {
	return s.list
}

// IsSupported reports whether a list is available
func (s CapabilityStatus[T]) IsSupported() bool {
	return s.kind == StatusSupported
}

func (s CapabilityStatus[T]) String() string {
	return s.kind.String()
}

// CapabilityKind names one of the server capability lists the client tracks
type CapabilityKind int

const (
	KindTools CapabilityKind = iota
	KindPrompts
	KindResources
	KindResourceTemplates
)

func (k CapabilityKind) String() string {
	switch k {
	case KindTools:
		return "tools"
	case KindPrompts:
		return "prompts"
	case KindResources:
		return "resources"
	case KindResourceTemplates:
		return "resource_templates"
	default:
		return "unknown"
	}
}

// capabilityStore keeps one capability list current. At most one fetch runs
// at a time; refreshes that arrive during a fetch collapse into one more fetch.
type capabilityStore[T any] struct {
	kind    CapabilityKind
	subject *Subject[CapabilityStatus[T]]
	fetch   func(ctx context.Context) ([]T, error)
	policy  RefetchPolicy
	logger  logging.Logger
	metrics observability.ClientMetrics

	mu        sync.Mutex
	ctx       context.Context
	spawn     func(func()) bool
	supported bool
	seeded    bool
	fetching  bool
	dirty     bool
}

func newCapabilityStore[T any](kind CapabilityKind, fetch func(ctx context.Context) ([]T, error), policy RefetchPolicy, logger logging.Logger, metrics observability.ClientMetrics) *capabilityStore[T] {
	return &capabilityStore[T]{
		kind:    kind,
		subject: NewSubject(Pending[T]()),
		fetch:   fetch,
		policy:  policy,
		logger:  logger.WithFields(logging.String("capability", kind.String())),
		metrics: metrics,
	}
}

// seed sets the status from the server's declaration. Fetches run on ctx in
// goroutines started through spawn.
func (s *capabilityStore[T]) seed(ctx context.Context, spawn func(func()) bool, supported bool) {
	s.mu.Lock()
	s.ctx = ctx
	s.spawn = spawn
	s.supported = supported
	s.seeded = true
	s.mu.Unlock()

	if !supported {
		s.subject.Publish(Unsupported[T]())
		return
	}
	s.refresh()
}

// refresh starts a fetch, or marks the store dirty when one is running
func (s *capabilityStore[T]) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		s.logger.Warn("List changed before handshake, ignored")
		return
	}
	if !s.supported {
		s.logger.Warn("List changed for undeclared capability, ignored")
		s.metrics.RecordAnomaly(s.ctx, "list_changed_unsupported")
		return
	}
	if s.fetching {
		s.dirty = true
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	s.fetching = s.spawn(s.loop)
}

func (s *capabilityStore[T]) loop() {
	for {
		list, err := s.fetchWithRetry()
		if err == nil {
			s.subject.Publish(Supported(list))
		}

		s.mu.Lock()
		if s.dirty && s.ctx.Err() == nil {
			s.dirty = false
			s.mu.Unlock()
			continue
		}
		s.dirty = false
		s.fetching = false
		s.mu.Unlock()
		return
	}
}

func (s *capabilityStore[T]) fetchWithRetry() ([]T, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.policy.InitialInterval
	expo.MaxInterval = s.policy.MaxInterval
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, s.policy.MaxRetries), s.ctx)

	var list []T
	operation := func() error {
		var err error
		list, err = s.fetch(s.ctx)
		s.metrics.RecordRefetch(s.ctx, s.kind.String(), observability.StatusOf(err))
		if err != nil && isSessionFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.logger.Warn("Capability list fetch failed, retrying",
			logging.ErrorField(err),
			logging.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if !isSessionFatal(err) {
			s.logger.Warn("Capability list fetch gave up, keeping last value", logging.ErrorField(err))
		}
		return nil, err
	}
	return list, nil
}

func (s *capabilityStore[T]) close() {
	s.subject.Close()
}

// isSessionFatal reports errors that no retry can fix
func isSessionFatal(err error) bool {
	return errors.Is(err, mcperrors.ErrTransportClosed) ||
		errors.Is(err, context.Canceled) ||
		mcperrors.IsCategory(err, mcperrors.CategorySession)
}
