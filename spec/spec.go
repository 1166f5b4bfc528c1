// Package spec implements hyperparameter specifications for training
// runs
package spec

// Key is a named hyperparameter of a training run
type Key string

// Available hyperparameter keys
const (
	TurnGamma   Key = "turn discount"
	TurnLambda  Key = "turn trace decay"
	TokenGamma  Key = "token discount"
	TokenLambda Key = "token trace decay"
	TurnWeight  Key = "turn advantage weight"
	TokenWeight Key = "token advantage weight"

	Instances       Key = "environment instances"
	TurnBudget      Key = "turns per window"
	MinibatchSize   Key = "minibatch size"
	HighlightFirst  Key = "highlighted turns per episode"
	HighlightWeight Key = "highlight weight"
)

// Spec describes the full hyperparameter configuration of some
// component of a training run
type Spec interface {
	Spec() map[Key]float64
}
