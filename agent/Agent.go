// Package agent defines the policy and critic collaborator interfaces
package agent

import "gonum.org/v1/gonum/mat"

// Action describes a single policy decision: the encoded action handed
// to the environment and the log probability of that action under the
// policy that produced it.
type Action struct {
	Vector  mat.Vector
	LogProb float64
}

// Policy chooses actions from observation encodings.
//
// During collection one policy value is shared by every environment
// instance worker, so implementations must be safe for concurrent use
// by multiple goroutines.
type Policy interface {
	SelectAction(obs mat.Vector) (Action, error)

	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Critic produces value estimates for observation encodings. It is
// consulted twice per window: once per turn at collection time and
// once per truncated episode instance at bootstrap resolution.
//
// Like Policy, a Critic is shared across collection workers and must
// be safe for concurrent use.
type Critic interface {
	Value(obs mat.Vector) (float64, error)
}

// TokenCritic is a Critic that additionally predicts one value per
// generated token. Engines fall back to broadcasting the scalar value
// across a turn's tokens when the critic is not a TokenCritic.
type TokenCritic interface {
	Critic
	TokenValues(obs mat.Vector, tokens int) ([]float64, error)
}
