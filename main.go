package main

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/spatial/r1"
	G "gorgonia.org/gorgonia"

	"sfneuman.com/turnrl/agent"
	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/environment"
	"sfneuman.com/turnrl/environment/chain"
	"sfneuman.com/turnrl/experiment"
	"sfneuman.com/turnrl/experiment/tracker"
	"sfneuman.com/turnrl/initwfn"
	"sfneuman.com/turnrl/network"
	"sfneuman.com/turnrl/solver"
	"sfneuman.com/turnrl/spec"
)

func main() {
	var seed uint64 = 192382

	collection := spec.Collection{
		InstanceCount:        4,
		TurnsPerWindow:       128,
		MinibatchSizeValue:   32,
		HighlightFirstValue:  2,
		HighlightWeightValue: 1.5,
	}
	discounting := spec.DualDiscount{
		TurnGammaValue:   0.99,
		TurnLambdaValue:  0.95,
		TokenGammaValue:  1.0,
		TokenLambdaValue: 1.0,
		TurnWeightValue:  1.0,
		TokenWeightValue: 0.5,
	}

	// Create the environment instances
	chainCells := 8
	bounds := r1.Interval{Min: 0, Max: float64(chainCells - 2)}
	envs := make([]environment.Environment, collection.InstanceCount)
	for i := range envs {
		starter := environment.NewUniformStarter([]r1.Interval{bounds},
			seed+uint64(i))
		env, err := chain.New(starter, chainCells, 50, 4)
		if err != nil {
			log.Fatalf("could not create environment: %v", err)
		}
		envs[i] = env
	}

	// Create the policy
	policy, err := agent.NewUniformRandom(envs[0].ActionSpec(), seed)
	if err != nil {
		log.Fatalf("could not create policy: %v", err)
	}

	// Create the critic network
	init, err := initwfn.NewGlorotN(1.0)
	if err != nil {
		log.Fatalf("could not create weight initializer: %v", err)
	}
	critic, err := network.NewValueMLP(
		chainCells,
		1,
		G.NewGraph(),
		[]int{64, 64},
		[]bool{true, true},
		init.InitWFn(),
		[]*network.Activation{network.ReLU(), network.ReLU()},
	)
	if err != nil {
		log.Fatalf("could not create critic network: %v", err)
	}

	// Create the critic trainer
	sol, err := solver.NewDefaultAdam(3e-4, collection.MinibatchSizeValue)
	if err != nil {
		log.Fatalf("could not create solver: %v", err)
	}
	trainer, err := experiment.NewCriticUpdater(critic, sol,
		collection.MinibatchSizeValue, 5)
	if err != nil {
		log.Fatalf("could not create critic trainer: %v", err)
	}

	config := experiment.Config{
		Windows:    200,
		MaxRetries: 2,
		Collection: collection,
		Advantage: gae.Config{
			TurnGamma:     discounting.TurnGammaValue,
			TurnLambda:    discounting.TurnLambdaValue,
			TokenGamma:    discounting.TokenGammaValue,
			TokenLambda:   discounting.TokenLambdaValue,
			Combine:       gae.Weighted,
			TurnWeight:    discounting.TurnWeightValue,
			TokenWeight:   discounting.TokenWeightValue,
			NormalizeTurn: true,
		},
		Assembly: batch.Config{
			MinibatchSize:   collection.MinibatchSizeValue,
			Shuffle:         true,
			Seed:            seed,
			HighlightFirst:  collection.HighlightFirstValue,
			HighlightWeight: collection.HighlightWeightValue,
		},
	}

	// Experiment
	returns := tracker.NewReturn("./data.bin")
	e, err := experiment.NewWindowed(envs, policy, critic, trainer, config,
		returns)
	if err != nil {
		log.Fatalf("could not create experiment: %v", err)
	}
	if err := e.Run(); err != nil {
		log.Fatalf("experiment failed: %v", err)
	}
	e.Save()

	fmt.Println("discarded windows:", e.Failed())
	data := tracker.LoadData("./data.bin")
	if len(data) > 10 {
		data = data[len(data)-10:]
	}
	fmt.Println(data)
}
