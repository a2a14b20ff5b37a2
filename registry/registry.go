package registry

import (
	"log/slog"
	"sync"
)

// Resource is a backend resource that is destroyed exactly once.
type Resource interface {
	comparable
	Destroy()
}

// Registry tracks shared ownership of backend resources. A resource is
// destroyed when its last reference is released.
type Registry[R Resource] struct {
	refs   map[R]int
	lock   sync.Mutex
	logger *slog.Logger
}

func New[R Resource](logger *slog.Logger) *Registry[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[R]{
		refs:   make(map[R]int),
		logger: logger.With("ctx", "registry"),
	}
}

// Acquire adds a reference to r and returns it.
func (r *Registry[R]) Acquire(res R) R {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.refs[res]++
	return res
}

// Release drops a reference to r and destroys it when none are left.
func (r *Registry[R]) Release(res R) {
	r.lock.Lock()
	count, ok := r.refs[res]
	if !ok {
		r.lock.Unlock()
		r.logger.Warn("release of unregistered resource", "resource", res)
		return
	}

	destroy := count == 1
	if destroy {
		delete(r.refs, res)
	} else {
		r.refs[res] = count - 1
	}
	r.lock.Unlock()

	if destroy {
		res.Destroy()
	}
}

// RefCount returns the current count of r, 0 if unregistered.
func (r *Registry[R]) RefCount(res R) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.refs[res]
}

// Snapshot returns a copy of all reference counts.
func (r *Registry[R]) Snapshot() map[R]int {
	r.lock.Lock()
	defer r.lock.Unlock()

	out := make(map[R]int, len(r.refs))
	for res, count := range r.refs {
		out[res] = count
	}
	return out
}

func (r *Registry[R]) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.refs)
}
