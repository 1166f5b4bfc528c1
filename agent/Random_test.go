package agent_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/agent"
	"sfneuman.com/turnrl/environment"
)

func actionSpec(actions int) environment.Spec {
	return environment.Spec{
		Shape:       mat.NewVecDense(1, nil),
		Type:        environment.Action,
		LowerBound:  mat.NewVecDense(1, []float64{0}),
		UpperBound:  mat.NewVecDense(1, []float64{float64(actions - 1)}),
		Cardinality: environment.Discrete,
	}
}

func TestSelectActionInRange(t *testing.T) {
	const actions = 4

	p, err := agent.NewUniformRandom(actionSpec(actions), 11)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	wantLogProb := -math.Log(actions)
	for i := 0; i < 100; i++ {
		a, err := p.SelectAction(mat.NewVecDense(1, nil))
		if err != nil {
			t.Fatalf("selectaction: %v", err)
		}

		if v := a.Vector.AtVec(0); v < 0 || v > actions-1 {
			t.Errorf("action %v outside [0, %v]", v, actions-1)
		}
		if a.LogProb != wantLogProb {
			t.Errorf("log probability: \n\twant(%v)\n\thave(%v)",
				wantLogProb, a.LogProb)
		}
	}
}

func TestNewUniformRandomContinuousSpec(t *testing.T) {
	spec := actionSpec(2)
	spec.Cardinality = environment.Continuous

	if _, err := agent.NewUniformRandom(spec, 11); err == nil {
		t.Error("new: expected error for continuous action spec")
	}
}
