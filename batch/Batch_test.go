package batch_test

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/turn"
)

func target(id, step int, adv, ret float64) gae.Target {
	return gae.Target{
		Record: turn.Record{
			InstanceID:  id,
			Step:        step,
			Observation: mat.NewVecDense(2, []float64{float64(id), float64(step)}),
			Action:      mat.NewVecDense(1, []float64{float64(step)}),
			LogProb:     -0.5,
		},
		TurnAdvantage: adv,
		TurnReturn:    ret,
	}
}

func data(t *testing.T, tn tensor.Tensor) []float64 {
	t.Helper()
	raw, ok := tensor.Materialize(tn).Data().([]float64)
	if !ok {
		t.Fatalf("tensor does not hold float64 data")
	}
	return raw
}

func TestAssembleRowsAligned(t *testing.T) {
	targets := []gae.Target{
		target(0, 0, 1.0, 10.0),
		target(0, 1, 2.0, 20.0),
		target(1, 0, 3.0, 30.0),
		target(1, 1, 4.0, 40.0),
	}

	a, err := batch.New(batch.Config{MinibatchSize: 2}, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	batches, err := a.Assemble(targets)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("batches: \n\twant(2)\n\thave(%v)", len(batches))
	}

	// Without shuffling, rows follow target order
	var advs, rets []float64
	for i := range batches {
		advs = append(advs, data(t, batches[i].Advantages)...)
		rets = append(rets, data(t, batches[i].Returns)...)
	}
	for i, tgt := range targets {
		if advs[i] != tgt.TurnAdvantage {
			t.Errorf("advantage row %v: \n\twant(%v)\n\thave(%v)", i,
				tgt.TurnAdvantage, advs[i])
		}
		if rets[i] != tgt.TurnReturn {
			t.Errorf("return row %v: \n\twant(%v)\n\thave(%v)", i,
				tgt.TurnReturn, rets[i])
		}
	}

	// Observation rows align with the scalar rows
	obs := data(t, batches[1].Observations)
	want := []float64{1, 0, 1, 1}
	for i := range want {
		if obs[i] != want[i] {
			t.Errorf("observation data %v: \n\twant(%v)\n\thave(%v)", i,
				want[i], obs[i])
		}
	}
}

func TestAssembleHighlightWeights(t *testing.T) {
	targets := []gae.Target{
		target(0, 0, 1.0, 0),
		target(0, 1, 1.0, 0),
		target(0, 2, 1.0, 0),
		target(1, 0, 1.0, 0),
	}

	a, err := batch.New(batch.Config{
		MinibatchSize:   4,
		HighlightFirst:  1,
		HighlightWeight: 2.5,
	}, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	batches, err := a.Assemble(targets)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	weights := data(t, batches[0].Weights)
	want := []float64{2.5, 1.0, 1.0, 2.5}
	for i := range want {
		if weights[i] != want[i] {
			t.Errorf("weight %v: \n\twant(%v)\n\thave(%v)", i, want[i],
				weights[i])
		}
	}

	// Highlighting never changes the advantages themselves
	advs := data(t, batches[0].Advantages)
	for i, adv := range advs {
		if adv != 1.0 {
			t.Errorf("advantage %v changed by highlighting: %v", i, adv)
		}
	}
}

func TestAssembleIndivisibleWindow(t *testing.T) {
	targets := []gae.Target{
		target(0, 0, 0, 0),
		target(0, 1, 0, 0),
		target(0, 2, 0, 0),
	}

	a, err := batch.New(batch.Config{MinibatchSize: 2}, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if _, err := a.Assemble(targets); err == nil {
		t.Error("assemble: expected error for ragged minibatch split")
	}
}

func TestAssembleShuffleDeterministic(t *testing.T) {
	targets := make([]gae.Target, 8)
	for i := range targets {
		targets[i] = target(0, i, float64(i), 0)
	}

	config := batch.Config{MinibatchSize: 4, Shuffle: true, Seed: 42}
	first, err := batch.New(config, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	second, err := batch.New(config, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	fb, err := first.Assemble(targets)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	sb, err := second.Assemble(targets)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	for i := range fb {
		fAdvs := data(t, fb[i].Advantages)
		sAdvs := data(t, sb[i].Advantages)
		for j := range fAdvs {
			if fAdvs[j] != sAdvs[j] {
				t.Errorf("minibatch %v row %v differs across equal seeds",
					i, j)
			}
		}
	}
}

func TestAssembleTokenTargets(t *testing.T) {
	short := target(0, 0, 0, 0)
	short.Combined = []float64{1.0}
	long := target(0, 1, 0, 0)
	long.Combined = []float64{2.0, 3.0, 4.0}

	a, err := batch.New(batch.Config{MinibatchSize: 2}, 2, 1)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	batches, err := a.Assemble([]gae.Target{short, long})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	counts := batches[0].TokenCounts
	if counts[0] != 1 || counts[1] != 3 {
		t.Errorf("token counts: \n\twant([1 3])\n\thave(%v)", counts)
	}

	tokens := data(t, batches[0].TokenTargets)
	want := []float64{1, 0, 0, 2, 3, 4}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token target %v: \n\twant(%v)\n\thave(%v)", i,
				want[i], tokens[i])
		}
	}
}
