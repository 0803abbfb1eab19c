// Package lockfree provides a single primitive: Slot, an atomically
// replaceable snapshot of a value of an arbitrary type.
//
// A Slot never hands out a mutable view of shared memory. Readers capture the
// current snapshot with one atomic load; writers publish a brand-new snapshot
// with one atomic store or compare-and-swap. Snapshots are immutable after
// publication, so a reader that obtained one can use it without further
// synchronization and can never observe a torn value.
package lockfree

import "sync/atomic"

// Slot holds at most one snapshot of a value of type T, replaceable
// atomically by any goroutine at any time. A slot with no snapshot is
// "absent"; the zero Slot is absent and ready for use.
//
// The stored value is copied freely in and out; the Slot itself must not be
// copied after first use. Snapshots are copied shallowly: if T contains
// slices, maps or pointers, those belong to the published snapshot too, and
// an update must replace them rather than write through them.
type Slot[T any] struct {
	p atomic.Pointer[T]

	// write-path counters, reported by Stats (the read path is not counted)
	stores        atomic.Uint64
	swaps         atomic.Uint64
	updates       atomic.Uint64
	updateRetries atomic.Uint64
	resets        atomic.Uint64
}

// SlotStats is a point-in-time copy of a slot's write-path counters.
type SlotStats struct {
	Stores        uint64 // completed Store and Init calls
	Swaps         uint64 // completed Swap calls
	Updates       uint64 // update iterations that won their compare-and-swap
	UpdateRetries uint64 // update iterations discarded after losing the race
	Resets        uint64 // completed Reset calls
}

// NewSlot creates a slot pre-populated with a snapshot of initial.
func NewSlot[T any](initial T) *Slot[T] {
	s := &Slot[T]{}
	s.p.Store(&initial)
	return s
}

// Store atomically replaces the current snapshot with a snapshot of v.
// It always succeeds. The previous snapshot becomes garbage once the last
// reader that captured it lets go.
func (s *Slot[T]) Store(v T) {
	s.p.Store(&v)
	s.stores.Add(1)
}

// Load returns a copy of the current snapshot's value, or the zero value of T
// if the slot is absent. It never blocks.
func (s *Slot[T]) Load() T {
	if p := s.p.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// TryLoad returns a copy of the current snapshot's value and true, or the
// zero value of T and false if the slot is absent.
func (s *Slot[T]) TryLoad() (T, bool) {
	if p := s.p.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Swap atomically replaces the current snapshot with a snapshot of v and
// returns the previous value, or the zero value of T if the slot was absent.
func (s *Slot[T]) Swap(v T) T {
	old := s.p.Swap(&v)
	s.swaps.Add(1)
	if old != nil {
		return *old
	}
	var zero T
	return zero
}

// Update atomically applies fn to the slot's value: it copies the current
// value (zero value if absent), runs fn on the copy, and publishes the copy
// as the new snapshot if no other goroutine replaced the slot in between.
// If the compare-and-swap loses the race the new snapshot is discarded and
// the whole step is retried against the fresh value.
//
// fn therefore runs one or more times per call. It must not have side
// effects outside its argument: only the invocation whose snapshot wins the
// final compare-and-swap becomes visible. Keeping fn pure is the caller's
// responsibility.
//
// Use the package-level Update function when a result is needed from fn.
func (s *Slot[T]) Update(fn func(*T)) {
	for {
		old := s.p.Load()

		var work T
		if old != nil {
			work = *old
		}
		fn(&work)

		if s.p.CompareAndSwap(old, &work) {
			// we won the race, the snapshot is published
			s.updates.Add(1)
			return
		}
		// contention, discard the copy and retry against the new current
		s.updateRetries.Add(1)
	}
}

// Init (re)initializes the slot with a snapshot of T's zero value.
// Equivalent to Store of the zero value.
func (s *Slot[T]) Init() {
	var zero T
	s.Store(zero)
}

// Reset atomically empties the slot. Afterwards IsAbsent reports true and
// Load returns the zero value of T.
func (s *Slot[T]) Reset() {
	s.p.Store(nil)
	s.resets.Add(1)
}

// IsAbsent reports whether the slot currently holds no snapshot.
func (s *Slot[T]) IsAbsent() bool {
	return s.p.Load() == nil
}

// Stats retrieves the current counters of the slot.
func (s *Slot[T]) Stats() SlotStats {
	return SlotStats{
		Stores:        s.stores.Load(),
		Swaps:         s.swaps.Load(),
		Updates:       s.updates.Load(),
		UpdateRetries: s.updateRetries.Load(),
		Resets:        s.resets.Load(),
	}
}

// Read captures the current snapshot and calls fn on its value in place,
// without copying the value out of the slot. If the slot is absent, fn
// receives a pointer to a zero value instead. Returns fn's result.
//
// fn must treat the pointed-to value as read-only and must not retain the
// pointer after it returns; the snapshot stays shared with every goroutine
// that captured it.
func Read[T, U any](s *Slot[T], fn func(*T) U) U {
	if p := s.p.Load(); p != nil {
		return fn(p)
	}
	var zero T
	return fn(&zero)
}

// Update is the result-bearing form of [Slot.Update]: it runs the same
// copy-mutate-publish loop and returns the result computed by the winning
// invocation of fn. Results computed by invocations that lost their
// compare-and-swap are discarded along with their snapshots.
//
// The same purity contract applies: fn may run several times per call.
func Update[T, U any](s *Slot[T], fn func(*T) U) U {
	for {
		old := s.p.Load()

		var work T
		if old != nil {
			work = *old
		}
		result := fn(&work)

		if s.p.CompareAndSwap(old, &work) {
			s.updates.Add(1)
			return result
		}
		s.updateRetries.Add(1)
	}
}
