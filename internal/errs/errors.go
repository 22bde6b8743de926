// Package errs defines the error taxonomy shared by the persistence engine.
// Callers classify failures with errors.Is against the sentinel values and
// read the human-readable detail from the wrapped message.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMetadataNotFound is returned when a class or attribute definition does not exist
	ErrMetadataNotFound = errors.New("metadata object not found")

	// ErrApplicationNotFound is returned when a user, group, pool, task, view,
	// saved query, business rule or sync group does not exist
	ErrApplicationNotFound = errors.New("application object not found")

	// ErrObjectNotFound is returned when a business object instance does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidArgument is returned for malformed names, invalid type changes,
	// duplicate names and other constraint violations
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotPermitted is returned when an operation is structurally forbidden,
	// such as deleting a core class or instantiating an abstract one
	ErrNotPermitted = errors.New("operation not permitted")

	// ErrBusinessRule is returned when a relationship is rejected by the rule engine
	ErrBusinessRule = errors.New("business rule violation")

	// ErrNotAuthorized is returned on session or permission failures
	ErrNotAuthorized = errors.New("not authorized")
)

// MetadataNotFound reports a missing class or attribute by name or id.
func MetadataNotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMetadataNotFound, fmt.Sprintf(format, args...))
}

// ApplicationNotFound reports a missing application-layer entity.
func ApplicationNotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrApplicationNotFound, fmt.Sprintf(format, args...))
}

// ObjectNotFound reports a missing business object instance.
func ObjectNotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrObjectNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgument reports a validation failure before any mutation happens.
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotPermitted reports an operation the engine refuses regardless of input shape.
func NotPermitted(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotPermitted, fmt.Sprintf(format, args...))
}

// BusinessRuleError carries the attribute names a rejected relationship failed on.
type BusinessRuleError struct {
	SourceClass     string
	TargetClass     string
	SourceAttribute string
	TargetAttribute string
	Reason          string
}

// Error implements the error interface
func (e *BusinessRuleError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("business rule violation: %s", e.Reason)
	}
	return fmt.Sprintf("business rule violation: value of %s in %s does not match %s in %s",
		e.TargetAttribute, e.TargetClass, e.SourceAttribute, e.SourceClass)
}

// Unwrap makes errors.Is(err, ErrBusinessRule) hold for rule rejections.
func (e *BusinessRuleError) Unwrap() error { return ErrBusinessRule }
