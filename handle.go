package vkcore

import "sync"

// Handle is a generation-checked reference into a Pool[T]. The zero value
// is never valid (generation 0 is never issued by Pool).
type Handle[T any] struct {
	index      uint32
	generation uint32
}

// Valid reports whether h was ever issued by a Pool (it does not check
// whether the slot is still occupied — only a Pool can know that).
func (h Handle[T]) Valid() bool {
	return h.generation != 0
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Pool is a generational slot map: the handle-pool pattern backing every
// create_*/destroy_* resource in this core (buffers, images, samplers,
// bind-group layouts, pipelines). Handles outlive destroy only insofar as
// the generation check fails lookups against a reused slot.
type Pool[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
}

// NewPool returns an empty pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Insert stores value and returns a fresh handle. Reuses a freed slot,
// bumping its generation, when one is available.
func (p *Pool[T]) Insert(value T) Handle[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		s := &p.slots[idx]
		s.value = value
		s.occupied = true
		return Handle[T]{index: idx, generation: s.generation}
	}

	p.slots = append(p.slots, slot[T]{value: value, generation: 1, occupied: true})
	return Handle[T]{index: uint32(len(p.slots) - 1), generation: 1}
}

// Get looks up a handle. Fails (ok=false) if the handle is stale — it was
// destroyed since, or never issued by this pool.
func (p *Pool[T]) Get(h Handle[T]) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if int(h.index) >= len(p.slots) {
		return zero, false
	}
	s := &p.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return zero, false
	}
	return s.value, true
}

// Remove clears the slot and returns its value for the caller to enqueue
// for deferred destruction. The slot's generation is bumped so any copy of
// h still in flight fails subsequent Get calls, and the slot index is
// pushed onto the free list for reuse.
func (p *Pool[T]) Remove(h Handle[T]) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if int(h.index) >= len(p.slots) {
		return zero, false
	}
	s := &p.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return zero, false
	}
	value := s.value
	s.value = zero
	s.occupied = false
	s.generation++
	p.free = append(p.free, h.index)
	return value, true
}
