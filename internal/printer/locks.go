package printer

import (
	"context"
	"sync"
)

// Locks serializes sessions per printer profile.
// A profile only has an entry while someone holds or waits for it.
type Locks struct {
	mu    sync.Mutex
	slots map[uint]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocks creates an empty lock table
func NewLocks() *Locks {
	return &Locks{slots: make(map[uint]*slot)}
}

func (l *Locks) join(id uint) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *Locks) leave(id uint, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

// Acquire blocks until the profile is free or ctx is done.
// The returned release func must be called exactly once.
func (l *Locks) Acquire(ctx context.Context, id uint) (release func(), err error) {
	s := l.join(id)
	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.leave(id, s)
			})
		}, nil
	case <-ctx.Done():
		l.leave(id, s)
		return nil, ctx.Err()
	}
}

// Busy reports whether a session currently holds the profile
func (l *Locks) Busy(id uint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[id]
	return ok && len(s.ch) > 0
}
