// Package chain implements a deterministic chain task for exercising
// the collection and advantage-estimation pipeline
package chain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"sfneuman.com/turnrl/environment"
	"sfneuman.com/turnrl/utils/floatutils"
	"sfneuman.com/turnrl/utils/matutils"
)

// Default reward scheme
const (
	StepReward float64 = 0.0
	GoalReward float64 = 1.0
)

// Chain is a one-dimensional corridor of cells. The agent starts in a
// cell chosen by its Starter, moves left or right one cell per turn,
// and the episode terminates with GoalReward when the rightmost cell
// is reached. Episodes that run for Horizon turns without reaching the
// goal are truncated by the environment itself.
//
// Observations are one-hot encodings of the current cell. When
// TokensPerTurn > 0 the environment also emits a token-level reward
// trace per turn, with the scalar turn reward placed on the final
// token and zeros elsewhere, mirroring how sparse sequence rewards
// arrive from a generation-based policy.
type Chain struct {
	environment.Starter

	length        int
	horizon       int
	tokensPerTurn int
	startBounds   r1.Interval

	position     int
	episodeSteps int
}

// New creates and returns a new Chain of the given length. The starter
// chooses the starting cell for each episode; its sampled value is
// clipped into the legal cell range.
func New(starter environment.Starter, length, horizon,
	tokensPerTurn int) (*Chain, error) {
	if length < 2 {
		return nil, fmt.Errorf("new: chain needs at least 2 cells, got %d",
			length)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("new: horizon must be positive, got %d", horizon)
	}

	c := &Chain{
		Starter:       starter,
		length:        length,
		horizon:       horizon,
		tokensPerTurn: tokensPerTurn,
		startBounds:   r1.Interval{Min: 0, Max: float64(length - 2)},
	}
	return c, nil
}

// Reset starts a new episode and returns its first observation
func (c *Chain) Reset() mat.Vector {
	start := c.Start().AtVec(0)
	c.position = int(floatutils.ClipInterval(start, c.startBounds))
	c.episodeSteps = 0
	return c.observation()
}

// Step moves the agent left (action 0) or right (any other action).
func (c *Chain) Step(action mat.Vector) (environment.Step, error) {
	if action.Len() != 1 {
		return environment.Step{}, fmt.Errorf("step: actions must be "+
			"1-dimensional \n\twant(1)\n\thave(%d)", action.Len())
	}

	if action.AtVec(0) < 0.5 {
		c.position--
	} else {
		c.position++
	}
	c.position = int(floatutils.Clip(float64(c.position), 0,
		float64(c.length-1)))
	c.episodeSteps++

	terminal := c.position == c.length-1
	truncated := !terminal && c.episodeSteps >= c.horizon

	reward := StepReward
	if terminal {
		reward = GoalReward
	}

	step := environment.Step{
		Observation:  c.observation(),
		Reward:       reward,
		TokenRewards: c.tokenRewards(reward),
		Terminal:     terminal,
		Truncated:    truncated,
	}

	if step.Last() {
		step.Observation = c.Reset()
	}
	return step, nil
}

// tokenRewards spreads a turn reward over a token trace, placing the
// full reward on the final token.
func (c *Chain) tokenRewards(reward float64) []float64 {
	if c.tokensPerTurn <= 0 {
		return nil
	}
	tokens := make([]float64, c.tokensPerTurn)
	tokens[len(tokens)-1] = reward
	return tokens
}

func (c *Chain) observation() mat.Vector {
	obs := mat.NewVecDense(c.length, nil)
	obs.SetVec(c.position, 1.0)
	return obs
}

// ObservationSpec returns the observation specification of the
// environment
func (c *Chain) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(c.length, nil)
	lower := mat.NewVecDense(c.length, nil)
	upper := onesVector(c.length)

	return environment.Spec{
		Shape:       shape,
		Type:        environment.Observation,
		LowerBound:  lower,
		UpperBound:  upper,
		Cardinality: environment.Discrete,
	}
}

// ActionSpec returns the action specification of the environment
func (c *Chain) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{0})
	upper := mat.NewVecDense(1, []float64{1})

	return environment.Spec{
		Shape:       shape,
		Type:        environment.Action,
		LowerBound:  lower,
		UpperBound:  upper,
		Cardinality: environment.Discrete,
	}
}

// RewardSpec returns the reward specification of the environment
func (c *Chain) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{StepReward})
	upper := mat.NewVecDense(1, []float64{GoalReward})

	return environment.Spec{
		Shape:       shape,
		Type:        environment.Reward,
		LowerBound:  lower,
		UpperBound:  upper,
		Cardinality: environment.Continuous,
	}
}

func (c *Chain) String() string {
	return fmt.Sprintf("Chain | Cells: %d  |  State: %v", c.length,
		matutils.Format(c.observation()))
}

func onesVector(length int) *mat.VecDense {
	ones := make([]float64, length)
	for i := range ones {
		ones[i] = 1.0
	}
	return mat.NewVecDense(length, ones)
}
