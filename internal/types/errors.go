// internal/types/errors.go
package types

import (
	"fmt"
)

// ValidationError reports missing or invalid caller-supplied input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a lookup of an unknown resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ExternalServiceError reports a failed call to a network collaborator.
// Transport marks transport-level failures (connect, timeout) as opposed to
// a service-reported failure; the generation retry delay depends on it.
type ExternalServiceError struct {
	Service   string
	Transport bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// ContentError reports generated content that failed validation, such as
// lyrics below the minimum length.
type ContentError struct {
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content: %s", e.Reason)
}

// StateError reports an action attempted while its stage preconditions are
// unmet, or an illegal stage transition.
type StateError struct {
	Stage  Stage
	Reason string
}

func (e *StateError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("state: %s (stage %s)", e.Reason, e.Stage)
	}
	return fmt.Sprintf("state: %s", e.Reason)
}
