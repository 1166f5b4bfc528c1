package bootstrap

import "errors"

// ResolveError implements errors unique to bootstrap resolution.
type ResolveError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *ResolveError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ResolveError) Unwrap() error {
	return e.Err
}

var errUnavailable = errors.New("bootstrap value unavailable")

var errNoValueFn = errors.New("no critic query function")

// IsUnavailable returns whether or not an error reports that a critic
// query failed during bootstrap resolution. The window the query
// belonged to must be discarded whole.
func IsUnavailable(err error) bool {
	if resErr, ok := err.(*ResolveError); ok {
		err = resErr.Err
	}
	return errors.Is(err, errUnavailable)
}
