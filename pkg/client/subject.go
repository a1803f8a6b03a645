package client

import (
	"sync"
)

// ReadOnlySubject is the consumer side of a Subject
type ReadOnlySubject[T any] interface {
	// Value returns the latest value without blocking
	Value() T
	// Subscribe returns a subscription that first yields the latest value
	Subscribe() *Subscription[T]
}

// Subject holds a current value and broadcasts every change to its
// subscribers. New subscribers receive the current value first.
type Subject[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers map[*subscriber[T]]struct{}
	closed      bool
}

// NewSubject creates a subject holding initial
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value:       initial,
		subscribers: make(map[*subscriber[T]]struct{}),
	}
}

// Value returns the latest published value
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe registers a new subscriber. On a closed subject the subscription
// yields the final value and then closes.
func (s *Subject[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := newSubscriber[T]()
	sub.push(s.value)
	if s.closed {
		sub.finish()
	} else {
		s.subscribers[sub] = struct{}{}
	}
	go sub.run()

	return &Subscription[T]{subject: s, sub: sub}
}

// Publish replaces the current value and queues it for every subscriber.
// It reports false once the subject is closed.
func (s *Subject[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.value = v
	for sub := range s.subscribers {
		sub.push(v)
	}
	return true
}

// Close completes every subscription after its queued values are delivered
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subscribers {
		sub.finish()
	}
	s.subscribers = nil
}

func (s *Subject[T]) unsubscribe(sub *subscriber[T]) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
	sub.stop()
}

// Subscription is one subscriber's view of a Subject
type Subscription[T any] struct {
	subject *Subject[T]
	sub     *subscriber[T]
	once    sync.Once
}

// C returns the channel of values. It is closed when the session ends or
// after Unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.sub.out
}

// Unsubscribe stops delivery and closes C. Queued values are dropped.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.subject.unsubscribe(s.sub)
	})
}

// subscriber queues values without bound and hands them to out in order
type subscriber[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []T
	finished bool
	stopped  bool
	out      chan T
	quit     chan struct{}
}

func newSubscriber[T any]() *subscriber[T] {
	s := &subscriber[T]{
		out:  make(chan T),
		quit: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscriber[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.cond.Signal()
}

// finish closes out once the queue drains
func (s *subscriber[T]) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.cond.Signal()
}

// stop closes out right away
func (s *subscriber[T]) stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.quit)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber[T]) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.finished && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		var zero T
		v := s.queue[0]
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.quit:
			return
		}
	}
}
