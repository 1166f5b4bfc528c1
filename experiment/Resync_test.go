package experiment

import (
	"errors"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/agent"
	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/environment"
	"sfneuman.com/turnrl/experiment/tracker"
	"sfneuman.com/turnrl/spec"
)

// unitRewardEnv pays reward 1 per turn with fixed-length episodes
type unitRewardEnv struct {
	length int
	steps  int
}

func (u *unitRewardEnv) Start() mat.Vector { return mat.NewVecDense(1, nil) }

func (u *unitRewardEnv) Reset() mat.Vector {
	u.steps = 0
	return u.Start()
}

func (u *unitRewardEnv) Step(action mat.Vector) (environment.Step, error) {
	u.steps++
	step := environment.Step{
		Observation: u.Start(),
		Reward:      1.0,
		Terminal:    u.steps >= u.length,
	}
	if step.Last() {
		step.Observation = u.Reset()
	}
	return step, nil
}

func (u *unitRewardEnv) ObservationSpec() environment.Spec {
	return environment.Spec{Shape: mat.NewVecDense(1, nil)}
}

func (u *unitRewardEnv) ActionSpec() environment.Spec {
	return environment.Spec{
		Shape:       mat.NewVecDense(1, nil),
		LowerBound:  mat.NewVecDense(1, []float64{0}),
		UpperBound:  mat.NewVecDense(1, []float64{1}),
		Cardinality: environment.Discrete,
	}
}

func (u *unitRewardEnv) RewardSpec() environment.Spec {
	return environment.Spec{Shape: mat.NewVecDense(1, nil)}
}

// fixedCritic returns the same value estimate for every observation
type fixedCritic struct {
	value float64
}

func (f fixedCritic) Value(obs mat.Vector) (float64, error) {
	return f.value, nil
}

// failOnceTrainer fails its first update and succeeds afterwards
type failOnceTrainer struct {
	calls int
}

func (f *failOnceTrainer) Update(batches []batch.Minibatch) error {
	f.calls++
	if f.calls == 1 {
		return errors.New("update failed")
	}
	return nil
}

// A discarded window contributes nothing to the registered trackers:
// neither its completed episodes nor partial running returns carried
// into the retry.
func TestResyncDropsDiscardedWindowFromTrackers(t *testing.T) {
	envs := []environment.Environment{&unitRewardEnv{length: 3}}
	policy, err := agent.NewUniformRandom(envs[0].ActionSpec(), 14)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}

	file := filepath.Join(t.TempDir(), "returns.bin")
	returns := tracker.NewReturn(file)

	config := Config{
		Windows:    1,
		MaxRetries: 1,
		Collection: spec.Collection{
			InstanceCount:  1,
			TurnsPerWindow: 4,
		},
		Advantage: gae.Config{
			TurnGamma:   0.99,
			TurnLambda:  0.95,
			TokenGamma:  1.0,
			TokenLambda: 1.0,
			Combine:     gae.TurnOnly,
		},
		Assembly: batch.Config{MinibatchSize: 2},
	}

	trainer := &failOnceTrainer{}
	e, err := NewWindowed(envs, policy, fixedCritic{0.5}, trainer, config,
		returns)
	if err != nil {
		t.Fatalf("newwindowed: %v", err)
	}

	if err := e.RunWindow(); err == nil {
		t.Fatal("runwindow: expected first update to fail")
	}
	e.resync()

	if err := e.RunWindow(); err != nil {
		t.Fatalf("retried runwindow: %v", err)
	}
	e.Save()

	// The failed window completed one episode of return 3 and collected
	// one extra turn; only the retry's episode may appear, with no stale
	// reward carried over.
	data := tracker.LoadData(file)
	if len(data) != 1 || data[0] != 3.0 {
		t.Errorf("episode returns: \n\twant([3])\n\thave(%v)", data)
	}
}
