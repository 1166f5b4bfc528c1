// Package environment outlines the interfaces and structs needed to
// implement concrete multi-turn agent tasks
package environment

import (
	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/turn"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Cardinality indicates whether the associated type is continuous or
// discrete
type Cardinality int

const (
	Discrete Cardinality = iota
	Continuous
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an action, an observation, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Reward
)

// Spec implements a specification, which tells the type, shape, and
// bounds of an action, observation, or reward
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// Step describes the result of taking a single action in an
// environment: the successor observation encoding, the scalar turn
// reward, optional token-level rewards aligned to the generated
// response, and the termination flags. Terminal marks a true terminal
// state; Truncated marks a termination forced by the environment's own
// step limit.
type Step struct {
	Observation  mat.Vector
	Reward       float64
	TokenRewards []float64
	Terminal     bool
	Truncated    bool
}

// Last returns whether the step ended its episode for either reason.
func (s Step) Last() bool {
	return s.Terminal || s.Truncated
}

// Environment implements a simulated multi-turn task. Environments are
// deterministic given their seed. A single Environment value backs a
// single instance slot and is stepped by exactly one collection worker
// at a time, so implementations need not be safe for concurrent use.
type Environment interface {
	Starter

	// Reset starts a new episode and returns its first observation
	// encoding
	Reset() mat.Vector

	// Step takes a single action. A returned *Fault is not an
	// escalating failure: the collection loop treats it as a forced
	// termination of the current episode.
	Step(action mat.Vector) (Step, error)

	ObservationSpec() Spec
	ActionSpec() Spec
	RewardSpec() Spec
}

// Annotate fills the environment-owned fields of a turn record from a
// step result. The remaining fields (value estimates, log
// probabilities) belong to the policy and critic.
func Annotate(rec *turn.Record, step Step) {
	rec.NextObservation = step.Observation
	rec.Reward = step.Reward
	rec.TokenRewards = step.TokenRewards
	rec.Done = step.Last()
	rec.Truncated = step.Truncated
}
