// Package gae implements dual-discount generalized advantage
// estimation - GAE(λ) - over drained collection windows
package gae

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"sfneuman.com/turnrl/buffer/window"
	"sfneuman.com/turnrl/turn"
	"sfneuman.com/turnrl/utils/matutils"
)

// CombinePolicy determines how turn-level and token-level advantages
// are merged into the per-token training signal. There is no default:
// a zero-valued policy fails validation so that the merge rule is
// always an explicit experimental choice.
type CombinePolicy int

const (
	// Sum adds the broadcast turn advantage to each token advantage
	Sum CombinePolicy = iota + 1

	// Weighted mixes the two signals with explicit coefficients
	Weighted

	// TurnOnly broadcasts the turn advantage across the turn's tokens,
	// ignoring token-level estimates
	TurnOnly
)

// Config implements the discounting and combination settings of an
// advantage Engine. The turn-level and token-level discount chains are
// fully independent: credit may decay slowly across turns while
// decaying quickly within a turn's token sequence, or vice versa.
type Config struct {
	TurnGamma  float64
	TurnLambda float64

	TokenGamma  float64
	TokenLambda float64

	Combine     CombinePolicy
	TurnWeight  float64 // Used by the Weighted policy only
	TokenWeight float64 // Used by the Weighted policy only

	// NormalizeTurn and NormalizeToken standardize the respective
	// advantage signals to mean 0 and standard deviation 1 across the
	// whole window before combination. Normalization rewrites the
	// per-target estimates in place: the shipped advantages are the
	// normalized ones.
	NormalizeTurn  bool
	NormalizeToken bool
}

// Validate returns an error if the configuration's discount rates are
// outside [0, 1] or no combination policy was chosen.
func (c Config) Validate() error {
	rates := map[string]float64{
		"turn gamma":   c.TurnGamma,
		"turn lambda":  c.TurnLambda,
		"token gamma":  c.TokenGamma,
		"token lambda": c.TokenLambda,
	}
	for name, rate := range rates {
		if rate < 0.0 || rate > 1.0 {
			return fmt.Errorf("validate: %v must be in [0, 1] \n\twant(%v)"+
				"\n\thave(%v)", name, "[0, 1]", rate)
		}
	}

	switch c.Combine {
	case Sum, TurnOnly:
	case Weighted:
		if c.TurnWeight == 0.0 && c.TokenWeight == 0.0 {
			return fmt.Errorf("validate: weighted combination with both " +
				"weights zero")
		}
	default:
		return fmt.Errorf("validate: no combination policy chosen")
	}
	return nil
}

// Target is one turn of a window annotated with its advantage
// estimates: the scalar turn-level GAE and return, the per-token GAE
// over the turn's token sequence, and the combined per-token signal
// produced by the configured combination policy.
type Target struct {
	turn.Record

	TurnAdvantage float64
	TurnReturn    float64

	TokenAdvantage []float64
	Combined       []float64
}

// Engine computes dual-discount GAE(λ) advantage estimates following
// https://arxiv.org/abs/1506.02438, run once per drained window.
// Instance slots are independent trajectories, so the per-slot
// recurrences run concurrently; normalization and combination need the
// whole window and run after the slots join.
type Engine struct {
	config Config
}

// New creates and returns a new advantage Engine with the given
// validated configuration.
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, &EngineError{Op: "new", Err: err}
	}
	return &Engine{config: config}, nil
}

// Compute calculates advantage targets for every turn of a drained
// window. The tails argument maps truncated instance ids to their
// resolved bootstrap values; slots whose final episode terminated
// naturally use a tail of exactly zero and need no entry.
//
// Any error is fatal to the whole window: a turn without a critic
// value or a truncated slot without a bootstrap entry poisons every
// estimate that would have been computed from it, so no partial
// results are ever returned.
func (e *Engine) Compute(w *window.Window, tails map[int]float64) ([]Target,
	error) {
	ids := w.Instances()
	results := make([][]Target, len(ids))

	var wait sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, id := range ids {
		wait.Add(1)
		go func(i, id int) {
			defer wait.Done()

			tail, hasTail := tails[id]
			targets, err := e.computeSlot(id, w.Turns(id), tail, hasTail)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = targets
		}(i, id)
	}
	wait.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	targets := make([]Target, 0, w.Len())
	for _, slot := range results {
		targets = append(targets, slot...)
	}

	e.normalize(targets)
	e.combine(targets)
	return targets, nil
}

// computeSlot runs the turn-level and token-level recurrences over one
// instance slot, splitting the slot into trajectories at episode
// boundaries.
func (e *Engine) computeSlot(id int, turns []turn.Record, tail float64,
	hasTail bool) ([]Target, error) {
	for _, rec := range turns {
		if !rec.HasValue {
			return nil, &EngineError{
				Op: "compute",
				Err: fmt.Errorf("%w: instance %d step %d",
					errIncompleteValueTrace, id, rec.Step),
			}
		}
	}

	targets := make([]Target, 0, len(turns))
	start := 0
	for stop := 0; stop < len(turns); stop++ {
		if !turns[stop].Done && stop != len(turns)-1 {
			continue
		}

		path := turns[start : stop+1]
		lastVal := 0.0
		if !turns[stop].Done {
			if !hasTail {
				return nil, &EngineError{
					Op:  "compute",
					Err: fmt.Errorf("%w: instance %d", errMissingTail, id),
				}
			}
			lastVal = tail
		}

		pathTargets := e.finishPath(path, lastVal)
		targets = append(targets, pathTargets...)
		start = stop + 1
	}
	return targets, nil
}

// finishPath computes the turn-level GAE and rewards-to-go for one
// trajectory, plus the token-level GAE within each of its turns. The
// lastVal argument is 0 if the trajectory ended in a terminal state
// and the bootstrap value estimate otherwise.
func (e *Engine) finishPath(path []turn.Record, lastVal float64) []Target {
	n := len(path)
	rews := make([]float64, n+1)
	vals := make([]float64, n+1)
	for i, rec := range path {
		rews[i] = rec.Reward
		vals[i] = rec.Value
	}
	rews[n] = lastVal
	vals[n] = lastVal

	// Turn-level GAE-lambda advantage calculation
	stateVals := mat.NewVecDense(n, vals[:n])
	nextStateVals := mat.NewVecDense(n, vals[1:])
	rewards := mat.NewVecDense(n, rews[:n])

	deltas := mat.NewVecDense(n, nil)
	deltas.AddScaledVec(rewards, e.config.TurnGamma, nextStateVals)
	deltas.SubVec(deltas, stateVals)

	advantages := discountCumSum(deltas,
		e.config.TurnGamma*e.config.TurnLambda)

	// Rewards-to-go
	rewsToGo := discountCumSum(mat.NewVecDense(n+1, rews),
		e.config.TurnGamma)

	targets := make([]Target, n)
	for i, rec := range path {
		targets[i] = Target{
			Record:         rec,
			TurnAdvantage:  advantages[i],
			TurnReturn:     rewsToGo[i],
			TokenAdvantage: e.tokenAdvantages(rec),
		}
	}
	return targets
}

// tokenAdvantages runs the token-level GAE recurrence over a single
// turn's token sequence. The token trace is terminal at the end of
// each turn: credit across turns flows through the turn-level chain,
// not the token chain. A turn without per-token value estimates uses
// its scalar critic value as the baseline at every token.
func (e *Engine) tokenAdvantages(rec turn.Record) []float64 {
	n := rec.Tokens()
	if n == 0 {
		return nil
	}

	rews := make([]float64, n+1)
	vals := make([]float64, n+1)
	copy(rews, rec.TokenRewards)
	if len(rec.TokenValues) == n {
		copy(vals, rec.TokenValues)
	} else {
		for i := 0; i < n; i++ {
			vals[i] = rec.Value
		}
	}

	stateVals := mat.NewVecDense(n, vals[:n])
	nextStateVals := mat.NewVecDense(n, vals[1:])
	rewards := mat.NewVecDense(n, rews[:n])

	deltas := mat.NewVecDense(n, nil)
	deltas.AddScaledVec(rewards, e.config.TokenGamma, nextStateVals)
	deltas.SubVec(deltas, stateVals)

	return discountCumSum(deltas, e.config.TokenGamma*e.config.TokenLambda)
}

// normalize standardizes the advantage signals across the whole window
// in place, when configured. Normalization happens before combination
// so the two signals are merged on a common scale.
func (e *Engine) normalize(targets []Target) {
	if e.config.NormalizeTurn {
		advs := make([]float64, len(targets))
		for i := range targets {
			advs[i] = targets[i].TurnAdvantage
		}
		standardize(advs)
		for i := range targets {
			targets[i].TurnAdvantage = advs[i]
		}
	}

	if e.config.NormalizeToken {
		var advs []float64
		for i := range targets {
			advs = append(advs, targets[i].TokenAdvantage...)
		}
		if len(advs) == 0 {
			return
		}
		standardize(advs)
		at := 0
		for i := range targets {
			n := len(targets[i].TokenAdvantage)
			copy(targets[i].TokenAdvantage, advs[at:at+n])
			at += n
		}
	}
}

// combine fills each target's per-token Combined signal according to
// the configured combination policy. Turns with no tokens get no
// combined signal.
func (e *Engine) combine(targets []Target) {
	for i := range targets {
		n := len(targets[i].TokenAdvantage)
		if n == 0 {
			continue
		}

		combined := make([]float64, n)
		for j := 0; j < n; j++ {
			switch e.config.Combine {
			case Sum:
				combined[j] = targets[i].TurnAdvantage +
					targets[i].TokenAdvantage[j]
			case Weighted:
				combined[j] = e.config.TurnWeight*targets[i].TurnAdvantage +
					e.config.TokenWeight*targets[i].TokenAdvantage[j]
			case TurnOnly:
				combined[j] = targets[i].TurnAdvantage
			}
		}
		targets[i].Combined = combined
	}
}

// standardize shifts and scales a slice to mean 0 and standard
// deviation 1 in place.
func standardize(x []float64) {
	mean := stat.Mean(x, nil)
	std := stat.StdDev(x, nil) + 1e-8

	vec := mat.NewVecDense(len(x), x)
	ones := matutils.VecOnes(len(x))

	vec.AddScaledVec(vec, -mean, ones)
	vec.ScaleVec(1.0/std, vec)
}

// discountCumSum computes and returns the discounted cumulative sum
// of all elements of a vector. Given a vector v = [x0 x1 x2 ... xN]
// and discount ℽ, this function computes and returns:
//
// [
//	x0 + ℽ x1 + ℽ^2 x2 + ℽ^3 x3 + ... + ℽ^(N-1) x(N-1) + ℽ^N xN
//	x1 + ℽ^1 x2 + ℽ^2 x3 + ... + ℽ^(N-2) x(N-1) + ℽ^(N-1) xN
//	x2 + ℽ^1 x3 + ... + ℽ^(N-3) x(N-1) + ℽ^(N-2) xN
// ...
// xN
// ]
func discountCumSum(x *mat.VecDense, discount float64) []float64 {
	discounts := mat.NewVecDense(x.Len(), nil)
	cumSums := make([]float64, x.Len())
	nextScaledRews := mat.NewVecDense(x.Len(), nil)
	backing := nextScaledRews.RawVector().Data

	for i := 0; i < x.Len(); i++ {
		discounts.ScaleVec(discount, discounts)
		discounts.SetVec(x.Len()-i-1, 1)

		nextScaledRews.MulElemVec(discounts, x)
		cumSums[x.Len()-i-1] = floats.Sum(backing[x.Len()-i-1:])
	}

	return cumSums
}
