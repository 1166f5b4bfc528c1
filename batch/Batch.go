// Package batch assembles advantage targets into fixed-size
// minibatches of training-ready tensors
package batch

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/utils/intutils"
	"sfneuman.com/turnrl/utils/tensorutils"
)

// Config implements the minibatching and re-weighting settings of an
// Assembler.
type Config struct {
	// MinibatchSize is the number of turns per minibatch. The window
	// turn budget must be an exact multiple of it.
	MinibatchSize int

	// Shuffle permutes turns across the window before partitioning.
	// Partitioning is deterministic given Seed.
	Shuffle bool
	Seed    uint64

	// HighlightFirst and HighlightWeight implement turn highlighting:
	// the first HighlightFirst turns of every episode contribute to
	// the gradient with weight HighlightWeight instead of 1. This is
	// purely a sampling weight; advantage values are never changed.
	HighlightFirst  int
	HighlightWeight float64
}

// Validate returns an error if the configuration cannot produce legal
// minibatches.
func (c Config) Validate() error {
	if c.MinibatchSize < 1 {
		return fmt.Errorf("validate: minibatch size must be positive, "+
			"got %d", c.MinibatchSize)
	}
	if c.HighlightFirst < 0 {
		return fmt.Errorf("validate: highlight count cannot be negative, "+
			"got %d", c.HighlightFirst)
	}
	if c.HighlightFirst > 0 && c.HighlightWeight <= 0.0 {
		return fmt.Errorf("validate: highlight weight must be positive "+
			"when highlighting, got %v", c.HighlightWeight)
	}
	return nil
}

// Minibatch is one fixed-size slice of a window's turns, ready for a
// single gradient step. Rows across all tensors are aligned: row i of
// every field describes the same turn.
type Minibatch struct {
	Observations tensor.Tensor // MinibatchSize x obsDim
	Actions      tensor.Tensor // MinibatchSize x actDim

	LogProbs   *tensor.Dense // MinibatchSize
	Advantages *tensor.Dense // MinibatchSize, turn-level
	Returns    *tensor.Dense // MinibatchSize, turn-level rewards-to-go
	Weights    *tensor.Dense // MinibatchSize, highlight weights

	// TokenTargets holds the combined per-token learning signal,
	// padded to the window's longest token sequence. TokenCounts gives
	// the number of valid leading entries per row; rows for turns with
	// no tokens have a count of zero and carry no signal.
	TokenTargets tensor.Tensor // MinibatchSize x maxTokens
	TokenCounts  []int
}

// Assembler partitions a window's advantage targets into minibatches.
type Assembler struct {
	config Config
	obsDim int
	actDim int
	rng    *rand.Rand
}

// New creates and returns a new Assembler producing minibatches of
// observation and action tensors with the given row widths.
func New(config Config, obsDim, actDim int) (*Assembler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if obsDim < 1 || actDim < 1 {
		return nil, fmt.Errorf("new: tensor dimensions must be positive "+
			"\n\thave(obs %d, act %d)", obsDim, actDim)
	}

	return &Assembler{
		config: config,
		obsDim: obsDim,
		actDim: actDim,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Assemble packages a window's advantage targets into minibatches. It
// fails if the number of targets is not an exact multiple of the
// minibatch size, since a ragged final minibatch would change the
// effective batch size of one gradient step per window.
//
// The per-turn gradient contribution is invariant to the order turns
// were collected across instances: targets are consumed as given (or
// under a seeded permutation), and each turn's advantage, return, and
// weight depend only on its own instance's trajectory.
func (a *Assembler) Assemble(targets []gae.Target) ([]Minibatch, error) {
	total := len(targets)
	if total == 0 || total%a.config.MinibatchSize != 0 {
		return nil, fmt.Errorf("assemble: window turns must divide evenly "+
			"into minibatches \n\twant(multiple of %d)\n\thave(%d)",
			a.config.MinibatchSize, total)
	}

	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}
	if a.config.Shuffle {
		a.rng.Shuffle(total, func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})
	}

	maxTokens := 1
	for i := range targets {
		maxTokens = intutils.Max(maxTokens, len(targets[i].Combined))
	}

	// Whole-window backings, sliced per minibatch below
	obs := make([]float64, total*a.obsDim)
	acts := make([]float64, total*a.actDim)
	logProbs := make([]float64, total)
	advs := make([]float64, total)
	rets := make([]float64, total)
	weights := make([]float64, total)
	tokenTargets := make([]float64, total*maxTokens)
	tokenCounts := make([]int, total)

	for row, idx := range perm {
		t := targets[idx]
		if t.Observation.Len() != a.obsDim {
			return nil, fmt.Errorf("assemble: illegal observation length "+
				"\n\twant(%v)\n\thave(%v)", a.obsDim, t.Observation.Len())
		}
		if t.Action.Len() != a.actDim {
			return nil, fmt.Errorf("assemble: illegal action length "+
				"\n\twant(%v)\n\thave(%v)", a.actDim, t.Action.Len())
		}

		for j := 0; j < a.obsDim; j++ {
			obs[row*a.obsDim+j] = t.Observation.AtVec(j)
		}
		for j := 0; j < a.actDim; j++ {
			acts[row*a.actDim+j] = t.Action.AtVec(j)
		}
		logProbs[row] = t.LogProb
		advs[row] = t.TurnAdvantage
		rets[row] = t.TurnReturn
		weights[row] = a.weight(t)

		copy(tokenTargets[row*maxTokens:(row+1)*maxTokens], t.Combined)
		tokenCounts[row] = len(t.Combined)
	}

	obsTensor := tensor.New(tensor.WithShape(total, a.obsDim),
		tensor.WithBacking(obs))
	actTensor := tensor.New(tensor.WithShape(total, a.actDim),
		tensor.WithBacking(acts))
	tokenTensor := tensor.New(tensor.WithShape(total, maxTokens),
		tensor.WithBacking(tokenTargets))

	size := a.config.MinibatchSize
	batches := make([]Minibatch, 0, total/size)
	for start := 0; start < total; start += size {
		rows := tensorutils.NewSlice(start, start+size, 1)

		obsView, err := obsTensor.Slice(rows)
		if err != nil {
			return nil, fmt.Errorf("assemble: could not slice "+
				"observations: %v", err)
		}
		actView, err := actTensor.Slice(rows)
		if err != nil {
			return nil, fmt.Errorf("assemble: could not slice actions: %v",
				err)
		}
		tokenView, err := tokenTensor.Slice(rows)
		if err != nil {
			return nil, fmt.Errorf("assemble: could not slice token "+
				"targets: %v", err)
		}

		batches = append(batches, Minibatch{
			Observations: obsView,
			Actions:      actView,
			LogProbs: tensor.New(tensor.WithShape(size),
				tensor.WithBacking(logProbs[start:start+size])),
			Advantages: tensor.New(tensor.WithShape(size),
				tensor.WithBacking(advs[start:start+size])),
			Returns: tensor.New(tensor.WithShape(size),
				tensor.WithBacking(rets[start:start+size])),
			Weights: tensor.New(tensor.WithShape(size),
				tensor.WithBacking(weights[start:start+size])),
			TokenTargets: tokenView,
			TokenCounts:  tokenCounts[start : start+size],
		})
	}
	return batches, nil
}

// weight returns the sampling weight of a single turn under the
// highlighting configuration.
func (a *Assembler) weight(t gae.Target) float64 {
	if a.config.HighlightFirst > 0 && t.Step < a.config.HighlightFirst {
		return a.config.HighlightWeight
	}
	return 1.0
}
