// Package scheduler keeps one deferred callback per key.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler arms at most one one-shot timer per key. Scheduling a key that already has a
// pending timer replaces it. Every timer carries a generation number, so a timer that was
// replaced or canceled after time.AfterFunc already started its goroutine still never
// reaches the callback.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
	gen     uint64
	fire    func(K)
	now     func() time.Time
}

type entry struct {
	timer    *time.Timer
	deadline time.Time
	gen      uint64
}

// Option tweaks a Scheduler.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for deadlines and remaining time. Timers still run on
// real time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns a scheduler that calls fire(key) when a key's timer expires.
// fire runs on its own goroutine.
func New[K comparable](fire func(K), opts ...Option) *Scheduler[K] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler[K]{
		entries: make(map[K]*entry),
		fire:    fire,
		now:     o.now,
	}
}

// Schedule arms the timer for key to fire after delay, canceling any pending one,
// and returns the new deadline.
func (s *Scheduler[K]) Schedule(key K, delay time.Duration) time.Time {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}

	s.gen++
	gen := s.gen
	e := &entry{
		deadline: s.now().Add(delay),
		gen:      gen,
	}
	e.timer = time.AfterFunc(delay, func() { s.expire(key, gen) })
	s.entries[key] = e
	return e.deadline
}

func (s *Scheduler[K]) expire(key K, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.mu.Unlock()

	s.fire(key)
}

// Cancel drops the pending timer for key. It reports whether one was pending; a timer
// whose callback already started is not pending any more.
func (s *Scheduler[K]) Cancel(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// CancelAll drops every pending timer and returns how many were dropped.
func (s *Scheduler[K]) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	return n
}

// Pending reports whether key has an armed timer.
func (s *Scheduler[K]) Pending(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Deadline returns when key's timer is due.
func (s *Scheduler[K]) Deadline(key K) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Remaining returns the time left until key's timer is due, never negative.
func (s *Scheduler[K]) Remaining(key K) (time.Duration, bool) {
	deadline, ok := s.Deadline(key)
	if !ok {
		return 0, false
	}
	left := deadline.Sub(s.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Keys returns the keys with pending timers in no particular order.
func (s *Scheduler[K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]K, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of pending timers.
func (s *Scheduler[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
