package core

import (
	"fmt"
	"sync"
)

// Registry hands out small integer identifiers for owners. Identifiers start
// at 1 so the zero value can mean "none". Released ids are reused.
type Registry[T any] struct {
	mu     sync.Mutex
	owners []*T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

func (r *Registry[T]) AquireNewID(owner *T) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.owners {
		// Existing free spot. Take it.
		if r.owners[i] == nil {
			r.owners[i] = owner
			return uint32(i) + 1
		}
	}
	r.owners = append(r.owners, owner)
	return uint32(len(r.owners))
}

func (r *Registry[T]) Lookup(id uint32) (*T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.owners) {
		return nil, false
	}
	o := r.owners[id-1]
	return o, o != nil
}

func (r *Registry[T]) ReleaseID(id uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || int(id) > len(r.owners) {
		return fmt.Errorf("release id %d out of range (max=%d): %w", id, len(r.owners), ErrInvalidParameter)
	}
	if r.owners[id-1] == nil {
		return fmt.Errorf("release id %d: already released: %w", id, ErrInvalidParameter)
	}
	r.owners[id-1] = nil
	return nil
}

// Len returns the number of live identifiers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.owners {
		if o != nil {
			n++
		}
	}
	return n
}

// Reset releases every identifier.
func (r *Registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners = nil
}
