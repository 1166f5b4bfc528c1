package agent

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/environment"
)

// UniformRandom is a Policy that selects discrete actions uniformly at
// random. It stands in for an external generation policy in examples
// and tests; the log probability of every action is -ln(n) for n legal
// actions.
type UniformRandom struct {
	mu      sync.Mutex
	rng     *rand.Rand
	actions int
	eval    bool
}

// NewUniformRandom returns a uniform random policy over the discrete
// action range of spec.
func NewUniformRandom(spec environment.Spec,
	seed uint64) (*UniformRandom, error) {
	if spec.Cardinality != environment.Discrete {
		return nil, fmt.Errorf("newuniformrandom: action spec must be discrete")
	}

	actions := int(spec.UpperBound.AtVec(0)-spec.LowerBound.AtVec(0)) + 1
	if actions < 1 {
		return nil, fmt.Errorf("newuniformrandom: invalid action range "+
			"[%v, %v]", spec.LowerBound.AtVec(0), spec.UpperBound.AtVec(0))
	}

	return &UniformRandom{
		rng:     rand.New(rand.NewSource(seed)),
		actions: actions,
	}, nil
}

// SelectAction returns a uniformly random action for the observation.
func (u *UniformRandom) SelectAction(obs mat.Vector) (Action, error) {
	u.mu.Lock()
	a := u.rng.Intn(u.actions)
	u.mu.Unlock()

	return Action{
		Vector:  mat.NewVecDense(1, []float64{float64(a)}),
		LogProb: -math.Log(float64(u.actions)),
	}, nil
}

// Eval sets the policy to evaluation mode
func (u *UniformRandom) Eval() { u.eval = true }

// Train sets the policy to training mode
func (u *UniformRandom) Train() { u.eval = false }

// IsEval indicates if the policy is in evaluation mode
func (u *UniformRandom) IsEval() bool { return u.eval }
