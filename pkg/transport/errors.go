package transport

import (
	"errors"
	"fmt"
)

// Common errors returned by the transport.
var (
	// ErrRequestDecode matches every *DecodeError via errors.Is.
	ErrRequestDecode = errors.New("request decode failed")

	// ErrUnknownOptimizationLevel is returned for an unsupported opt token.
	ErrUnknownOptimizationLevel = errors.New("unknown optimization level")

	// ErrMalformedLocale is returned for a locale that is not valid BCP 47.
	ErrMalformedLocale = errors.New("malformed locale")

	// ErrPluginNotAllowed is returned when a required module names a loader
	// plugin other than has!.
	ErrPluginNotAllowed = errors.New("loader plugin not allowed in required modules")

	// ErrInvalidFeatureName is returned for a feature name containing '*'
	// or starting with '!', which the canonical has form cannot represent.
	ErrInvalidFeatureName = errors.New("invalid has feature name")

	// ErrUndefinedFeature is returned when a has! expression references a
	// feature the request does not define.
	ErrUndefinedFeature = errors.New("has! feature not defined in request")

	// ErrMalformedHasExpression is returned for an unparsable has! expression.
	ErrMalformedHasExpression = errors.New("malformed has! expression")

	// ErrInvalidFlag is returned for a boolean parameter that is not a boolean.
	ErrInvalidFlag = errors.New("invalid boolean flag")

	// ErrModuleCount is returned when count does not match the module list.
	ErrModuleCount = errors.New("module count mismatch")

	// ErrInvalidConfigVarName is returned for a config var that is not an identifier.
	ErrInvalidConfigVarName = errors.New("invalid config var name")

	// ErrIllegalTransition is returned by Sequencer for an out-of-order event.
	ErrIllegalTransition = errors.New("illegal layer contribution transition")
)

// DecodeError describes why a request was rejected. No DecodedRequest is
// produced when a DecodeError is returned.
type DecodeError struct {
	Param string
	Value string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("decode %s: %v", e.Param, e.Err)
	}
	return fmt.Sprintf("decode %s=%q: %v", e.Param, e.Value, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports ErrRequestDecode as a match so callers need not know the cause.
func (e *DecodeError) Is(target error) bool {
	return target == ErrRequestDecode
}

func decodeErr(param, value string, err error) *DecodeError {
	decodeErrorsTotal.WithLabelValues(param).Inc()
	return &DecodeError{Param: param, Value: value, Err: err}
}
