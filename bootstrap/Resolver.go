// Package bootstrap resolves tail values for episodes truncated by the
// close of a collection window
package bootstrap

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/buffer/window"
	"sfneuman.com/turnrl/episode"
)

// ValueFn queries an external critic for the value estimate of a
// single observation encoding. The call may block on an external
// compute service; Resolve is therefore always run after the drain
// barrier, never while collection workers still hold the buffer.
type ValueFn func(obs mat.Vector) (float64, error)

// Resolve computes the bootstrap tail value for every instance whose
// episode was truncated by the window boundary, keyed by instance id.
// The critic is queried with the successor observation of the
// instance's final collected turn. Instances whose episodes ended
// naturally get no entry: their terminal value is exactly zero and the
// critic is never consulted for them.
//
// Resolution is all or nothing. If any query fails, Resolve returns an
// unavailability error and no tail map: a partially bootstrapped
// window would silently bias the advantage estimates, so the caller
// must discard the window instead.
func Resolve(w *window.Window, t *episode.Tracker,
	vf ValueFn) (map[int]float64, error) {
	if vf == nil {
		return nil, &ResolveError{Op: "resolve", Err: errNoValueFn}
	}

	tails := make(map[int]float64)
	for _, id := range w.Instances() {
		if !t.Truncated(id) {
			continue
		}

		last, ok := w.Last(id)
		if !ok || last.Done {
			// Truncation implies a non-terminal final turn; disagreement
			// means the tracker and buffer have diverged.
			return nil, &ResolveError{
				Op: "resolve",
				Err: fmt.Errorf("tracker reports instance %d truncated "+
					"but window disagrees", id),
			}
		}
		if last.NextObservation == nil {
			return nil, &ResolveError{
				Op: "resolve",
				Err: fmt.Errorf("instance %d has no successor observation "+
					"to bootstrap from", id),
			}
		}

		value, err := vf(last.NextObservation)
		if err != nil {
			return nil, &ResolveError{
				Op:  "resolve",
				Err: fmt.Errorf("%w for instance %d: %v", errUnavailable, id, err),
			}
		}
		tails[id] = value
	}

	return tails, nil
}
