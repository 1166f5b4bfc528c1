package window

import "errors"

// BufferError implements errors unique to a window turn buffer.
type BufferError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *BufferError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *BufferError) Unwrap() error {
	return e.Err
}

var errCapacityExceeded = errors.New("turn budget exceeded")

var errShortWindow = errors.New("window not yet full")

var errUnknownInstance = errors.New("instance slot not allocated")

var errStepOrder = errors.New("turn out of step order for instance")

// IsCapacityExceeded returns whether or not an error reports that a
// window's fixed turn budget was exceeded. The budget is fixed per
// window: the error is fatal to the current window but recoverable by
// configuring a larger budget for the next.
func IsCapacityExceeded(err error) bool {
	if bufErr, ok := err.(*BufferError); ok {
		err = bufErr.Err
	}
	return err == errCapacityExceeded
}

// IsShortWindow returns whether or not an error reports a drain of a
// window that has not yet collected its full turn budget.
func IsShortWindow(err error) bool {
	if bufErr, ok := err.(*BufferError); ok {
		err = bufErr.Err
	}
	return err == errShortWindow
}

// IsStepOrder returns whether or not an error reports an appended turn
// whose step index does not follow its instance's previous turn.
func IsStepOrder(err error) bool {
	if bufErr, ok := err.(*BufferError); ok {
		err = bufErr.Err
	}
	return err == errStepOrder
}
