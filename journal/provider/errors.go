package provider

import (
	"errors"
	"fmt"
)

// ErrTransport matches every failure to obtain a reply from the model endpoint.
var ErrTransport = errors.New("llm transport failure")

// TransportError reports an unreachable endpoint, a non-success status, a timeout, or an
// unreadable response envelope. It is never produced for a reply that arrived but could not
// be parsed as an analysis.
type TransportError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

func asTransportError(backend string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Backend: backend, Err: err}
}
