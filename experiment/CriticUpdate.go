package experiment

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/network"
	"sfneuman.com/turnrl/solver"
)

// CriticUpdater is a Trainer that fits the critic network to the
// turn-level return targets of each window by minimizing mean squared
// error. A separate training copy of the network, sized to the
// minibatch, holds the loss graph; after each window's updates its
// weights are copied back into the shared prediction network consulted
// by collection workers and the bootstrap resolver.
type CriticUpdater struct {
	critic   *network.ValueMLP
	trainNet network.NeuralNet

	targets *G.Node
	vm      G.VM
	solver  *solver.Solver

	minibatchSize int
	gradSteps     int
}

// NewCriticUpdater creates and returns a new CriticUpdater training
// the given batch-1 critic network. Each minibatch is fit for
// gradSteps gradient steps.
func NewCriticUpdater(critic *network.ValueMLP, sol *solver.Solver,
	minibatchSize, gradSteps int) (*CriticUpdater, error) {
	if gradSteps < 1 {
		return nil, fmt.Errorf("newcriticupdater: gradient steps must be "+
			"positive, got %d", gradSteps)
	}

	trainNet, err := critic.CloneWithBatch(minibatchSize)
	if err != nil {
		return nil, fmt.Errorf("newcriticupdater: could not create "+
			"training network: %v", err)
	}

	g := trainNet.Graph()
	targets := G.NewMatrix(g, tensor.Float64,
		G.WithShape(minibatchSize, 1), G.WithName("returnTargets"),
		G.WithInit(G.Zeroes()))

	diff := G.Must(G.Sub(trainNet.Prediction(), targets))
	loss := G.Must(G.Mean(G.Must(G.Square(diff))))
	if _, err := G.Grad(loss, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("newcriticupdater: could not compute "+
			"gradient: %v", err)
	}

	vm := G.NewTapeMachine(g,
		G.BindDualValues(trainNet.Learnables()...))

	return &CriticUpdater{
		critic:        critic,
		trainNet:      trainNet,
		targets:       targets,
		vm:            vm,
		solver:        sol,
		minibatchSize: minibatchSize,
		gradSteps:     gradSteps,
	}, nil
}

// Update fits the training network to each minibatch's return targets
// and copies the resulting weights into the shared prediction network.
func (c *CriticUpdater) Update(batches []batch.Minibatch) error {
	for i, mb := range batches {
		obs, err := rawData(mb.Observations)
		if err != nil {
			return fmt.Errorf("update: minibatch %d: %v", i, err)
		}
		if err := c.trainNet.SetInput(obs); err != nil {
			return fmt.Errorf("update: could not set minibatch %d "+
				"observations: %v", i, err)
		}

		rets, err := rawData(mb.Returns)
		if err != nil {
			return fmt.Errorf("update: minibatch %d: %v", i, err)
		}
		targetTensor := tensor.New(
			tensor.WithShape(c.minibatchSize, 1),
			tensor.WithBacking(rets),
		)
		if err := G.Let(c.targets, targetTensor); err != nil {
			return fmt.Errorf("update: could not set minibatch %d "+
				"targets: %v", i, err)
		}

		for step := 0; step < c.gradSteps; step++ {
			if err := c.vm.RunAll(); err != nil {
				return fmt.Errorf("update: could not run value update: %v",
					err)
			}
			if err := c.solver.Step(c.trainNet.Model()); err != nil {
				return fmt.Errorf("update: could not step solver: %v", err)
			}
			c.vm.Reset()
		}
	}

	return network.Set(c.critic, c.trainNet)
}

// rawData extracts the float64 backing of a tensor, materializing
// views so that sliced minibatches read only their own rows.
func rawData(t tensor.Tensor) ([]float64, error) {
	mat := tensor.Materialize(t)
	data, ok := mat.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("rawdata: tensor holds %T, not float64",
			mat.Data())
	}
	return data, nil
}
