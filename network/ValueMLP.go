package network

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ValueMLP implements a multi-layered perceptron with a single output
// node predicting the state value of its input observation. A final
// linear layer with a bias unit and no activation is always added so
// that the network produces a single unbounded prediction.
//
// A batch-1 ValueMLP doubles as the critic consulted during rollout
// collection and bootstrap resolution: Value runs the forward pass on
// a single observation under a mutex, so concurrent collection workers
// may share one network.
type ValueMLP struct {
	mu sync.Mutex

	g      *G.ExprGraph
	layers []Layer
	input  *G.Node

	features  int
	batchSize int

	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    G.Value

	vm G.VM // Lazily created, used by Value only
}

// NewValueMLP creates and returns a new value-predicting MLP on the
// graph g. For index i, hiddenSizes[i] is the number of nodes in
// hidden layer i, biases[i] is whether that layer has a bias unit, and
// activations[i] is the layer's activation function.
func NewValueMLP(features, batch int, g *G.ExprGraph, hiddenSizes []int,
	biases []bool, init G.InitWFn, activations []*Activation) (*ValueMLP,
	error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newvaluemlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newvaluemlp: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}

	// Final linear output layer
	hiddenSizes = append(hiddenSizes, 1)
	biases = append(biases, true)
	activations = append(activations, Identity())

	input := G.NewMatrix(g, tensor.Float64, G.WithShape(batch, features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	layers := addFCLayers(g, hiddenSizes, biases, activations, init,
		features, "value")

	net := &ValueMLP{
		g:           g,
		layers:      layers,
		input:       input,
		features:    features,
		batchSize:   batch,
		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
	}
	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("newvaluemlp: could not compute forward "+
			"pass: %v", err)
	}

	return net, nil
}

// fwd performs the forward pass of the ValueMLP on the input node
func (v *ValueMLP) fwd(input *G.Node) (*G.Node, error) {
	pred := input
	var err error
	for i, l := range v.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	v.prediction = pred
	G.Read(v.prediction, &v.predVal)

	return pred, nil
}

// Graph returns the computational graph of the ValueMLP.
func (v *ValueMLP) Graph() *G.ExprGraph {
	return v.g
}

// BatchSize returns the number of input rows per forward pass.
func (v *ValueMLP) BatchSize() int {
	return v.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (v *ValueMLP) Features() int {
	return v.features
}

// CloneWithBatch clones the ValueMLP onto a fresh graph with a new
// input batch size, sharing no nodes with the original. The clone's
// weights start equal to the original's.
func (v *ValueMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	graph := G.NewGraph()
	input := G.NewMatrix(graph, tensor.Float64,
		G.WithShape(batchSize, v.features), G.WithName("input"),
		G.WithInit(G.Zeroes()))

	layers := make([]Layer, len(v.layers))
	for i := range v.layers {
		layers[i] = v.layers[i].CloneTo(graph)
	}

	net := &ValueMLP{
		g:           graph,
		layers:      layers,
		input:       input,
		features:    v.features,
		batchSize:   batchSize,
		hiddenSizes: v.hiddenSizes,
		biases:      v.biases,
		activations: v.activations,
	}
	if _, err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return net, nil
}

// SetInput sets the value of the input node before running the forward
// pass.
func (v *ValueMLP) SetInput(input []float64) error {
	if len(input) != v.features*v.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs"+
			"\n\twant(%v)\n\thave(%v)", v.features*v.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(v.input.Shape()...),
	)
	return G.Let(v.input, inputTensor)
}

// Learnables returns the learnable nodes in the ValueMLP
func (v *ValueMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if v.learnables == nil {
		learnables := make([]*G.Node, 0, 2*len(v.layers))
		for i := range v.layers {
			learnables = append(learnables, v.layers[i].Weights())
			if bias := v.layers[i].Bias(); bias != nil {
				learnables = append(learnables, bias)
			}
		}
		v.learnables = G.Nodes(learnables)
	}
	return v.learnables
}

// Model returns the learnable nodes with their gradients.
func (v *ValueMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if v.model == nil {
		model := make([]G.ValueGrad, 0, 2*len(v.layers))
		for _, node := range v.Learnables() {
			model = append(model, node)
		}
		v.model = model
	}
	return v.model
}

// Output returns the output of the ValueMLP after the last forward
// pass.
func (v *ValueMLP) Output() G.Value {
	return v.predVal
}

// Prediction returns the node of the computational graph that stores
// the output of the ValueMLP
func (v *ValueMLP) Prediction() *G.Node {
	return v.prediction
}

// Value returns the network's value estimate of a single observation.
// The receiver must have a batch size of 1.
func (v *ValueMLP) Value(obs mat.Vector) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.batchSize != 1 {
		return 0, fmt.Errorf("value: prediction requires batch size 1, "+
			"got %d", v.batchSize)
	}
	if obs.Len() != v.features {
		return 0, fmt.Errorf("value: invalid observation length"+
			"\n\twant(%v)\n\thave(%v)", v.features, obs.Len())
	}

	raw := make([]float64, v.features)
	for i := range raw {
		raw[i] = obs.AtVec(i)
	}
	if err := v.SetInput(raw); err != nil {
		return 0, fmt.Errorf("value: could not set input: %v", err)
	}

	if v.vm == nil {
		v.vm = G.NewTapeMachine(v.g)
	}
	if err := v.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("value: could not run forward pass: %v", err)
	}
	defer v.vm.Reset()

	return scalar(v.predVal)
}

// scalar extracts a single float64 from a Gorgonia value
func scalar(val G.Value) (float64, error) {
	switch data := val.Data().(type) {
	case float64:
		return data, nil
	case []float64:
		if len(data) != 1 {
			return 0, fmt.Errorf("scalar: value holds %d elements",
				len(data))
		}
		return data[0], nil
	default:
		return 0, fmt.Errorf("scalar: unsupported value type %T", data)
	}
}
