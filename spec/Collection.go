package spec

// Collection represents the configuration of rollout collection and
// minibatch assembly for one training run
type Collection struct {
	InstanceCount        int
	TurnsPerWindow       int
	MinibatchSizeValue   int
	HighlightFirstValue  int
	HighlightWeightValue float64
}

// Spec gets the configuration of rollout collection
func (c Collection) Spec() map[Key]float64 {
	spec := make(map[Key]float64)
	spec[Instances] = float64(c.InstanceCount)
	spec[TurnBudget] = float64(c.TurnsPerWindow)
	spec[MinibatchSize] = float64(c.MinibatchSizeValue)
	spec[HighlightFirst] = float64(c.HighlightFirstValue)
	spec[HighlightWeight] = c.HighlightWeightValue
	return spec
}
