package spec

// DualDiscount represents the discounting configuration of an
// advantage computation: independent discount and trace-decay pairs
// for the turn-level and token-level reward sequences, plus the
// mixing weights of the combined learning target.
type DualDiscount struct {
	TurnGammaValue   float64
	TurnLambdaValue  float64
	TokenGammaValue  float64
	TokenLambdaValue float64
	TurnWeightValue  float64
	TokenWeightValue float64
}

// Spec gets the configuration of the advantage computation
func (d DualDiscount) Spec() map[Key]float64 {
	spec := make(map[Key]float64)
	spec[TurnGamma] = d.TurnGammaValue
	spec[TurnLambda] = d.TurnLambdaValue
	spec[TokenGamma] = d.TokenGammaValue
	spec[TokenLambda] = d.TokenLambdaValue
	spec[TurnWeight] = d.TurnWeightValue
	spec[TokenWeight] = d.TokenWeightValue
	return spec
}
