// Package window implements the fixed-budget turn buffer backing a
// single collection window
package window

import (
	"fmt"
	"sync"

	"sfneuman.com/turnrl/turn"
)

// Buffer collects the turn records of a single collection window. A
// Buffer holds one pre-allocated slot per environment instance
// (arena+index: turns append to their instance's ordered sequence), up
// to a fixed total turn budget shared by every instance. Append is
// safe for concurrent use by multiple collection workers; a record is
// either appended whole or rejected, never partially written.
type Buffer struct {
	mu sync.Mutex

	budget int
	count  int
	slots  [][]turn.Record
}

// New creates and returns a new Buffer with one slot per environment
// instance and the given total turn budget per window.
func New(instances, budget int) (*Buffer, error) {
	if instances < 1 {
		return nil, fmt.Errorf("new: instances must be positive, got %d",
			instances)
	}
	if budget < 1 {
		return nil, fmt.Errorf("new: turn budget must be positive, got %d",
			budget)
	}

	return &Buffer{
		budget: budget,
		slots:  make([][]turn.Record, instances),
	}, nil
}

// Append adds a completed turn record to its instance's slot. It fails
// with a capacity error once the window's turn budget is reached and
// rejects records that break the step ordering of their instance slot:
// within one window a slot's steps must increase by exactly one per
// turn, restarting at zero after a turn that ended its episode.
func (b *Buffer) Append(rec turn.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if rec.InstanceID < 0 || rec.InstanceID >= len(b.slots) {
		return &BufferError{Op: "append", Err: errUnknownInstance}
	}
	if b.count >= b.budget {
		return &BufferError{Op: "append", Err: errCapacityExceeded}
	}

	slot := b.slots[rec.InstanceID]
	if len(slot) > 0 {
		prev := slot[len(slot)-1]
		next := prev.Step + 1
		if prev.Done {
			next = 0
		}
		if rec.Step != next {
			return &BufferError{Op: "append", Err: errStepOrder}
		}
	}

	b.slots[rec.InstanceID] = append(slot, rec)
	b.count++
	return nil
}

// Discard drops every turn collected so far this window, leaving the
// buffer ready for fresh rollouts. Used when a window fails partway
// through collection and is retried.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots = make([][]turn.Record, len(b.slots))
	b.count = 0
}

// Len returns the number of turns collected so far this window.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Budget returns the fixed turn budget per window.
func (b *Buffer) Budget() int {
	return b.budget
}

// Drain returns the window's collected turns and clears the buffer for
// the next window. Drain must only be called once every collection
// worker has finished appending; it fails if the window has not
// collected its full turn budget, since training iterations consume a
// fixed number of turns regardless of episode boundaries.
func (b *Buffer) Drain() (*Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count != b.budget {
		return nil, &BufferError{Op: "drain", Err: errShortWindow}
	}

	slots := b.slots
	b.slots = make([][]turn.Record, len(slots))
	b.count = 0

	return &Window{slots: slots, turns: b.budget}, nil
}

// Window is the immutable result of draining a Buffer: every turn
// collected during one window, ordered by step within each instance
// slot.
type Window struct {
	slots [][]turn.Record
	turns int
}

// Len returns the total number of turns in the window.
func (w *Window) Len() int {
	return w.turns
}

// Instances returns the ids of instance slots that collected at least
// one turn this window, in increasing order.
func (w *Window) Instances() []int {
	ids := make([]int, 0, len(w.slots))
	for id, slot := range w.slots {
		if len(slot) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Turns returns the ordered turn sequence collected for one instance
// slot. The returned slice is shared, not copied; callers must not
// mutate it.
func (w *Window) Turns(id int) []turn.Record {
	if id < 0 || id >= len(w.slots) {
		return nil
	}
	return w.slots[id]
}

// Last returns the final collected turn of an instance slot and
// whether the slot collected any turns at all.
func (w *Window) Last(id int) (turn.Record, bool) {
	slot := w.Turns(id)
	if len(slot) == 0 {
		return turn.Record{}, false
	}
	return slot[len(slot)-1], true
}
