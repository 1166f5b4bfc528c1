package gae

import "errors"

// EngineError implements errors unique to advantage computation.
type EngineError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *EngineError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Err
}

var errIncompleteValueTrace = errors.New("turn missing critic value")

var errMissingTail = errors.New("truncated slot missing bootstrap value")

// IsIncompleteValueTrace returns whether or not an error reports that
// a turn entered advantage computation without a collection-time
// critic value. Values are attached at collection; their absence is a
// pipeline fault, never something to patch over with a zero.
func IsIncompleteValueTrace(err error) bool {
	if engErr, ok := err.(*EngineError); ok {
		err = engErr.Err
	}
	return errors.Is(err, errIncompleteValueTrace)
}

// IsMissingTail returns whether or not an error reports a truncated
// instance slot that was given no bootstrap tail value.
func IsMissingTail(err error) bool {
	if engErr, ok := err.(*EngineError); ok {
		err = engErr.Err
	}
	return errors.Is(err, errMissingTail)
}
