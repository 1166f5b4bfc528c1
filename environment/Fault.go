package environment

import "fmt"

// Fault reports a failure inside an environment instance during
// collection. Faults are absorbed rather than escalated: the
// collection loop records a forced termination (done with no reward
// adjustment) for the faulting instance and carries on.
type Fault struct {
	InstanceID int
	Err        error
}

// Error satisfies the error interface
func (f *Fault) Error() string {
	return fmt.Sprintf("environment fault on instance %d: %v",
		f.InstanceID, f.Err)
}

// Unwrap returns the underlying failure
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault returns whether or not an error reports an environment
// fault.
func IsFault(err error) bool {
	_, ok := err.(*Fault)
	return ok
}
