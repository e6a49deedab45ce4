package diagnosis

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned for empty or whitespace-only query text.
var ErrEmptyQuery = errors.New("query is empty")

// TransportError reports a failed exchange with the diagnosis service: the
// request could not be sent, the status was not 2xx, or the body was malformed.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
