package shared

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so boundary layers can map them to
// transport codes without inspecting message text.
type Kind int

const (
	// KindUnknown is the zero value for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindNotFound indicates a referenced entity id does not exist.
	KindNotFound
	// KindValidationFailed indicates a structural or business rule
	// violation on input. Never retried.
	KindValidationFailed
	// KindApprovalRequired is a control outcome, not a fault: posting is
	// deliberately suspended pending human review.
	KindApprovalRequired
	// KindPreconditionFailed indicates an operation attempted on an
	// entity in the wrong state.
	KindPreconditionFailed
	// KindConflictDetected indicates a lost concurrent-modification
	// race. Safe to retry the whole operation from fresh state.
	KindConflictDetected
	// KindIntegrityViolation indicates a hash-chain or proof
	// verification failure. Fatal; never auto-repaired.
	KindIntegrityViolation
)

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidationFailed:
		return "VALIDATION_FAILED"
	case KindApprovalRequired:
		return "APPROVAL_REQUIRED"
	case KindPreconditionFailed:
		return "PRECONDITION_FAILED"
	case KindConflictDetected:
		return "CONFLICT_DETECTED"
	case KindIntegrityViolation:
		return "INTEGRITY_VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// DomainError carries a Kind alongside the message so callers switch on
// the kind, never on message substrings.
type DomainError struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap exposes the wrapped cause.
func (e *DomainError) Unwrap() error { return e.Err }

// E builds a DomainError with the given kind and message.
func E(kind Kind, msg string) error {
	return &DomainError{Kind: kind, Msg: msg}
}

// Ef builds a DomainError with a formatted message.
func Ef(kind Kind, format string, args ...any) error {
	return &DomainError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &DomainError{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
