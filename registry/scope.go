package registry

import "sync"

// Scope holds references that are released together, exactly once, by Close.
//
//	scope := reg.Scope()
//	defer scope.Close()
type Scope[R Resource] struct {
	registry *Registry[R]

	lock   sync.Mutex
	held   []R
	closed bool
}

func (r *Registry[R]) Scope() *Scope[R] {
	return &Scope[R]{registry: r}
}

// Acquire adds a reference owned by the scope.
func (s *Scope[R]) Acquire(res R) R {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		panic("acquire on closed scope")
	}
	s.registry.Acquire(res)
	s.held = append(s.held, res)
	return res
}

// Close releases every reference of the scope. Later calls are no-ops.
func (s *Scope[R]) Close() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	held := s.held
	s.held = nil
	s.lock.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		s.registry.Release(held[i])
	}
}
