package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a contract was rejected by static validation.
type ErrorKind int

const (
	ErrMalformedInput ErrorKind = iota + 1
	ErrMissingMemorySection
	ErrInvalidMemoryCount
	ErrMemoryTooLarge
	ErrMemoryMaximumMustBeUnset
	ErrMissingExport
	ErrUnsupportedImport
	ErrNonFunctionImport
	ErrUnsupportedFeatures
	ErrNoCompatibleGeneration
)

var errorKindNames = map[ErrorKind]string{
	ErrMalformedInput:           "malformed_input",
	ErrMissingMemorySection:     "missing_memory_section",
	ErrInvalidMemoryCount:       "invalid_memory_count",
	ErrMemoryTooLarge:           "memory_too_large",
	ErrMemoryMaximumMustBeUnset: "memory_maximum_must_be_unset",
	ErrMissingExport:            "missing_export",
	ErrUnsupportedImport:        "unsupported_import",
	ErrNonFunctionImport:        "non_function_import",
	ErrUnsupportedFeatures:      "unsupported_features",
	ErrNoCompatibleGeneration:   "no_compatible_generation",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_error_kind(%d)", int(k))
}

// PerGeneration reports whether the kind is only fatal once every API
// generation has failed.
func (k ErrorKind) PerGeneration() bool {
	switch k {
	case ErrMissingExport, ErrUnsupportedImport, ErrNonFunctionImport:
		return true
	default:
		return false
	}
}

// ValidationError is returned for every contract rejected by static validation.
// Msg is surfaced verbatim to whoever deploys the contract, so its wording is stable.
type ValidationError struct {
	Kind ErrorKind
	Msg  string
	// Subject is the export or import name the error is about, if any.
	Subject string
	// Features holds the sorted unsupported features for ErrUnsupportedFeatures.
	Features []string
	// Trials holds every generation attempt for ErrNoCompatibleGeneration.
	Trials []GenerationTrial
}

var _ error = (*ValidationError)(nil)

func (e *ValidationError) Error() string {
	if e == nil {
		return "(nil)"
	}
	return e.Msg
}

// Unwrap exposes the failed halves of every generation trial.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	for _, t := range e.Trials {
		if t.Exports != nil {
			errs = append(errs, t.Exports)
		}
		if t.Imports != nil {
			errs = append(errs, t.Imports)
		}
	}
	return errs
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(kind ErrorKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// GenerationTrial is the outcome of checking a contract against one API generation.
type GenerationTrial struct {
	Generation string
	Exports    error
	Imports    error
}

// Passed is true when both the export and the import check succeeded.
func (t GenerationTrial) Passed() bool {
	return t.Exports == nil && t.Imports == nil
}

// KindOf returns the kind of the outermost ValidationError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return 0, false
	}
	return verr.Kind, true
}

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
