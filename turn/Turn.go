// Package turn implements turn records of multi-turn agent-environment
// interaction
package turn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Record packages together a single turn of interaction between one
// environment instance and the policy: the agent observed Observation,
// generated Action, and received Reward. A Record is owned by the
// window buffer it is appended to and is never mutated afterwards.
//
// NextObservation holds the encoding of the state the environment
// transitioned into. It is carried on every record so that, when a
// collection window closes in the middle of an episode, the bootstrap
// resolver can query the critic for the value of the successor state
// without touching the environment again.
type Record struct {
	InstanceID int // Environment instance that produced the turn
	Step       int // Ordinal within the episode, starting at 0

	Observation     mat.Vector
	NextObservation mat.Vector
	Action          mat.Vector

	// Reward is the scalar turn-level reward. TokenRewards, when
	// non-empty, is aligned to the tokens of the generated response.
	Reward       float64
	TokenRewards []float64

	// Value is the critic's estimate of Observation at collection
	// time. HasValue reports whether the critic was queried at all;
	// a Record entering advantage computation with HasValue == false
	// is a fatal precondition violation. TokenValues optionally holds
	// per-token value estimates; when absent, Value is broadcast
	// across the turn's tokens as a baseline.
	Value       float64
	HasValue    bool
	TokenValues []float64

	// LogProb is the log probability of Action under the
	// collection-time policy.
	LogProb float64

	// Done marks the turn that ended its episode. Truncated
	// additionally marks terminations forced by an environment step
	// limit rather than a true terminal state.
	Done      bool
	Truncated bool
}

// Tokens returns the number of generated tokens backing the turn's
// action. A turn with no token-level rewards reports zero.
func (r Record) Tokens() int {
	return len(r.TokenRewards)
}

func (r Record) String() string {
	str := "Turn | Instance: %d  |  Step: %d  |  Reward: %.2f  |  " +
		"Done: %v"
	return fmt.Sprintf(str, r.InstanceID, r.Step, r.Reward, r.Done)
}
