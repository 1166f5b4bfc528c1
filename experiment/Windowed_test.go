package experiment_test

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/agent"
	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/environment"
	"sfneuman.com/turnrl/environment/chain"
	"sfneuman.com/turnrl/experiment"
	"sfneuman.com/turnrl/spec"
)

// constCritic returns the same value estimate for every observation
type constCritic struct {
	value float64
}

func (c constCritic) Value(obs mat.Vector) (float64, error) {
	return c.value, nil
}

// errCritic fails every query
type errCritic struct{}

func (e errCritic) Value(obs mat.Vector) (float64, error) {
	return 0, errors.New("critic offline")
}

// countTrainer records the minibatches it is handed
type countTrainer struct {
	updates int
	batches int
}

func (c *countTrainer) Update(batches []batch.Minibatch) error {
	c.updates++
	c.batches += len(batches)
	return nil
}

// faultEnv faults on every step
type faultEnv struct{}

func (f *faultEnv) Start() mat.Vector { return mat.NewVecDense(2, nil) }
func (f *faultEnv) Reset() mat.Vector { return f.Start() }

func (f *faultEnv) Step(action mat.Vector) (environment.Step, error) {
	return environment.Step{}, &environment.Fault{
		Err: errors.New("simulator crashed"),
	}
}

func (f *faultEnv) ObservationSpec() environment.Spec {
	return environment.Spec{Shape: mat.NewVecDense(2, nil)}
}

func (f *faultEnv) ActionSpec() environment.Spec {
	return environment.Spec{
		Shape:       mat.NewVecDense(1, nil),
		LowerBound:  mat.NewVecDense(1, []float64{0}),
		UpperBound:  mat.NewVecDense(1, []float64{1}),
		Cardinality: environment.Discrete,
	}
}

func (f *faultEnv) RewardSpec() environment.Spec {
	return environment.Spec{Shape: mat.NewVecDense(1, nil)}
}

// fixedStarter always starts episodes in the same cell
type fixedStarter struct {
	cell float64
}

func (f fixedStarter) Start() mat.Vector {
	return mat.NewVecDense(1, []float64{f.cell})
}

func testConfig(instances, budget, minibatch int) experiment.Config {
	return experiment.Config{
		Windows:    1,
		MaxRetries: 0,
		Collection: spec.Collection{
			InstanceCount:  instances,
			TurnsPerWindow: budget,
		},
		Advantage: gae.Config{
			TurnGamma:   0.99,
			TurnLambda:  0.95,
			TokenGamma:  1.0,
			TokenLambda: 1.0,
			Combine:     gae.TurnOnly,
		},
		Assembly: batch.Config{MinibatchSize: minibatch},
	}
}

func chainEnvs(t *testing.T, n int) []environment.Environment {
	t.Helper()
	envs := make([]environment.Environment, n)
	for i := range envs {
		env, err := chain.New(fixedStarter{cell: 1}, 6, 20, 2)
		if err != nil {
			t.Fatalf("could not create environment: %v", err)
		}
		envs[i] = env
	}
	return envs
}

func TestRunWindowDeliversBatches(t *testing.T) {
	envs := chainEnvs(t, 2)
	policy, err := agent.NewUniformRandom(envs[0].ActionSpec(), 14)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}

	trainer := &countTrainer{}
	e, err := experiment.NewWindowed(envs, policy, constCritic{0.5},
		trainer, testConfig(2, 8, 4))
	if err != nil {
		t.Fatalf("newwindowed: %v", err)
	}

	if err := e.RunWindow(); err != nil {
		t.Fatalf("runwindow: %v", err)
	}
	if trainer.updates != 1 {
		t.Errorf("updates: \n\twant(1)\n\thave(%v)", trainer.updates)
	}
	if trainer.batches != 2 {
		t.Errorf("minibatches: \n\twant(2)\n\thave(%v)", trainer.batches)
	}

	// Episodes truncated by the first window continue into the second
	if err := e.RunWindow(); err != nil {
		t.Fatalf("second runwindow: %v", err)
	}
	if trainer.updates != 2 {
		t.Errorf("updates after second window: \n\twant(2)\n\thave(%v)",
			trainer.updates)
	}
}

// A window whose critic cannot be queried produces zero gradient
// updates.
func TestRunWindowCriticFailure(t *testing.T) {
	envs := chainEnvs(t, 2)
	policy, err := agent.NewUniformRandom(envs[0].ActionSpec(), 14)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}

	trainer := &countTrainer{}
	e, err := experiment.NewWindowed(envs, policy, errCritic{}, trainer,
		testConfig(2, 8, 4))
	if err != nil {
		t.Fatalf("newwindowed: %v", err)
	}

	if err := e.RunWindow(); err == nil {
		t.Fatal("runwindow: expected error from failing critic")
	}
	if trainer.updates != 0 {
		t.Errorf("failed window produced %v updates", trainer.updates)
	}
}

// Environment faults are absorbed as forced terminations, not window
// failures.
func TestRunWindowAbsorbsEnvironmentFaults(t *testing.T) {
	envs := []environment.Environment{&faultEnv{}}
	policy, err := agent.NewUniformRandom(envs[0].ActionSpec(), 14)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}

	trainer := &countTrainer{}
	e, err := experiment.NewWindowed(envs, policy, constCritic{0.5},
		trainer, testConfig(1, 4, 2))
	if err != nil {
		t.Fatalf("newwindowed: %v", err)
	}

	if err := e.RunWindow(); err != nil {
		t.Fatalf("runwindow: faults should not fail the window: %v", err)
	}
	if trainer.updates != 1 {
		t.Errorf("updates: \n\twant(1)\n\thave(%v)", trainer.updates)
	}
}
