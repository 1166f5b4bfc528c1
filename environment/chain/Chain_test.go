package chain_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/environment/chain"
)

// fixedStarter always starts episodes in the same cell
type fixedStarter struct {
	cell float64
}

func (f fixedStarter) Start() mat.Vector {
	return mat.NewVecDense(1, []float64{f.cell})
}

func right() mat.Vector {
	return mat.NewVecDense(1, []float64{1})
}

func left() mat.Vector {
	return mat.NewVecDense(1, []float64{0})
}

func position(obs mat.Vector) int {
	for i := 0; i < obs.Len(); i++ {
		if obs.AtVec(i) == 1.0 {
			return i
		}
	}
	return -1
}

func TestResetOneHot(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 2}, 5, 100, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	obs := env.Reset()
	if obs.Len() != 5 {
		t.Fatalf("observation length: \n\twant(5)\n\thave(%v)", obs.Len())
	}
	if position(obs) != 2 {
		t.Errorf("start cell: \n\twant(2)\n\thave(%v)", position(obs))
	}
}

// Start cells sampled outside the corridor are clipped into it, and
// never onto the goal cell.
func TestResetClipsStart(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 9}, 5, 100, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if p := position(env.Reset()); p != 3 {
		t.Errorf("start cell: \n\twant(3)\n\thave(%v)", p)
	}
}

func TestStepReachesGoal(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 3}, 5, 100, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	env.Reset()

	step, err := env.Step(right())
	if err != nil {
		t.Fatalf("step: %v", err)
	}

	if !step.Terminal {
		t.Error("step onto rightmost cell should terminate")
	}
	if step.Reward != chain.GoalReward {
		t.Errorf("reward: \n\twant(%v)\n\thave(%v)", chain.GoalReward,
			step.Reward)
	}

	// Token trace carries the turn reward on its final token
	if len(step.TokenRewards) != 3 {
		t.Fatalf("token rewards: \n\twant(3)\n\thave(%v)",
			len(step.TokenRewards))
	}
	if step.TokenRewards[2] != chain.GoalReward {
		t.Errorf("final token reward: \n\twant(%v)\n\thave(%v)",
			chain.GoalReward, step.TokenRewards[2])
	}
	if step.TokenRewards[0] != 0 || step.TokenRewards[1] != 0 {
		t.Errorf("non-final token rewards should be zero, got %v",
			step.TokenRewards)
	}

	// The episode restarts after termination
	if position(step.Observation) != 3 {
		t.Errorf("post-terminal observation should restart at cell 3, "+
			"got %v", position(step.Observation))
	}
}

func TestStepLeftBounded(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 0}, 5, 100, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	env.Reset()

	step, err := env.Step(left())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if position(step.Observation) != 0 {
		t.Errorf("leftmost cell should absorb left moves, got cell %v",
			position(step.Observation))
	}
	if step.Last() {
		t.Error("left move from cell 0 should not end the episode")
	}
}

func TestStepHorizonTruncates(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 0}, 10, 3, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	env.Reset()

	var last bool
	for i := 0; i < 3; i++ {
		step, err := env.Step(left())
		if err != nil {
			t.Fatalf("step %v: %v", i, err)
		}
		last = step.Truncated
		if i < 2 && step.Last() {
			t.Fatalf("episode ended early at step %v", i)
		}
	}
	if !last {
		t.Error("episode should truncate at the horizon")
	}
}

func TestStepBadAction(t *testing.T) {
	env, err := chain.New(fixedStarter{cell: 0}, 5, 100, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	env.Reset()

	if _, err := env.Step(mat.NewVecDense(2, nil)); err == nil {
		t.Error("step: expected error for 2-dimensional action")
	}
}
