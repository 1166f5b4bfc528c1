// Package episode tracks per-instance episode state across collection
// windows
package episode

import (
	"fmt"

	"sfneuman.com/turnrl/turn"
)

// State holds the episode bookkeeping of a single environment
// instance. Steps counts the turns of the episode currently in
// progress; it resets when a new episode begins in the same instance
// slot.
type State struct {
	InstanceID int
	Steps      int
	Active     bool
}

// Tracker maintains one State per environment instance. Because a
// fixed-turn window can close in the middle of an episode, tracker
// state persists across windows: an episode begun in one window
// continues counting in the next.
//
// Tracker is not safe for concurrent use. Turns are observed after
// the drain barrier, one instance slot at a time, in step order.
type Tracker struct {
	states   []State
	episodes []int
	lastDone []bool
	observed []bool
}

// New creates and returns a new Tracker for the given number of
// environment instances.
func New(instances int) (*Tracker, error) {
	if instances < 1 {
		return nil, fmt.Errorf("new: instances must be positive, got %d",
			instances)
	}

	states := make([]State, instances)
	for i := range states {
		states[i] = State{InstanceID: i}
	}

	return &Tracker{
		states:   states,
		episodes: make([]int, instances),
		lastDone: make([]bool, instances),
		observed: make([]bool, instances),
	}, nil
}

// Observe ingests a single turn record. The record's step index must
// equal the next expected step of its instance's episode: step indices
// increase strictly by one per turn until the episode ends, and a
// fresh episode restarts at zero. Any violation is fatal to the
// window that produced the record.
func (t *Tracker) Observe(rec turn.Record) error {
	if rec.InstanceID < 0 || rec.InstanceID >= len(t.states) {
		return fmt.Errorf("observe: unknown instance %d", rec.InstanceID)
	}

	state := &t.states[rec.InstanceID]
	if rec.Step != state.Steps {
		return fmt.Errorf("observe: non-sequential step for instance %d "+
			"\n\twant(%d)\n\thave(%d)", rec.InstanceID, state.Steps, rec.Step)
	}

	state.Steps++
	state.Active = true
	t.observed[rec.InstanceID] = true
	t.lastDone[rec.InstanceID] = rec.Done

	if rec.Done {
		state.Steps = 0
		state.Active = false
		t.episodes[rec.InstanceID]++
	}
	return nil
}

// Restart clears the in-progress episode state of every instance,
// keeping completed-episode counts. Used when a failed window discards
// its rollouts and collection restarts from freshly reset
// environments.
func (t *Tracker) Restart() {
	for i := range t.states {
		t.states[i] = State{InstanceID: i}
		t.lastDone[i] = false
		t.observed[i] = false
	}
}

// Truncated reports whether an instance's episode was cut off by the
// close of the current window: its most recent observed turn did not
// end its episode. Truncation is the sole trigger for bootstrapping a
// tail value.
func (t *Tracker) Truncated(id int) bool {
	if id < 0 || id >= len(t.states) {
		return false
	}
	return t.observed[id] && !t.lastDone[id]
}

// Observed reports whether any turn has ever been observed for the
// instance.
func (t *Tracker) Observed(id int) bool {
	if id < 0 || id >= len(t.observed) {
		return false
	}
	return t.observed[id]
}

// Episodes returns the number of episodes the instance has completed
// so far.
func (t *Tracker) Episodes(id int) int {
	if id < 0 || id >= len(t.episodes) {
		return 0
	}
	return t.episodes[id]
}

// State returns a copy of the instance's episode state.
func (t *Tracker) State(id int) (State, bool) {
	if id < 0 || id >= len(t.states) {
		return State{}, false
	}
	return t.states[id], true
}

// Instances returns the number of instance slots tracked.
func (t *Tracker) Instances() int {
	return len(t.states)
}
