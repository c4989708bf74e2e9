package openapi

import "fmt"

// TransientError marks a fetch failure worth retrying: throttling, a
// 5xx, or a request timeout.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient source error: status %d", e.Status)
	}
	return fmt.Sprintf("transient source error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure retrying cannot fix: a non-429 4xx, a
// malformed body, or an embedded application failure code.
type PermanentError struct {
	Code    string
	Message string
	Err     error
}

func (e *PermanentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("permanent source error: code %s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("permanent source error: %s", e.Message)
	}
	return fmt.Sprintf("permanent source error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// UnavailableError is raised when every retry attempt for a page has
// been exhausted. It carries the page and the last underlying error so
// the orchestrator can record the unit and move on.
type UnavailableError struct {
	Page int
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source unavailable for page %d: %v", e.Page, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
