package upstream

import "fmt"

// FailureKind classifies why an origin fetch did not produce a usable body.
type FailureKind string

const (
	// KindUnreachable represents connection-level failures (refused, DNS, reset).
	KindUnreachable FailureKind = "unreachable"

	// KindTimeout represents a fetch that exceeded its deadline.
	KindTimeout FailureKind = "timeout"

	// KindUpstreamStatus represents a non-2xx status returned by the origin.
	KindUpstreamStatus FailureKind = "upstream_status"

	// KindBadResponse represents a malformed origin body (empty or not valid text).
	KindBadResponse FailureKind = "bad_response"
)

// Failure is the error returned for any unsuccessful origin fetch.
type Failure struct {
	Kind FailureKind

	// Status is the origin status code for KindUpstreamStatus, 0 otherwise.
	Status int

	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("origin %s failure (status %d)", f.Kind, f.Status)
	}
	if f.Err != nil {
		return fmt.Sprintf("origin %s failure: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("origin %s failure", f.Kind)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Err
}
