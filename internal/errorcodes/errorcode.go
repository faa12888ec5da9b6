// Package errorcodes defines plugin runtime errors using a structured type.
// PluginError holds the two-character code and human-readable description.
package errorcodes

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined plugin runtime error instances.
var (
	ErrParse                 = PluginError{Code: "PE", Description: "malformed version or manifest"}
	ErrValidation            = PluginError{Code: "VE", Description: "manifest validation failed"}
	ErrAbiMismatch           = PluginError{Code: "AM", Description: "ABI version mismatch"}
	ErrPlatformIncompatible  = PluginError{Code: "PI", Description: "plugin does not support this platform"}
	ErrNotFound              = PluginError{Code: "NF", Description: "plugin not found"}
	ErrDisabled              = PluginError{Code: "DS", Description: "plugin is disabled"}
	ErrCapabilityUnsupported = PluginError{Code: "CU", Description: "plugin does not support operation"}
	ErrInstantiation         = PluginError{Code: "IE", Description: "plugin instantiation failed"}
	ErrEntryPointMissing     = PluginError{Code: "EM", Description: "plugin entry point missing"}
	ErrGuestExecution        = PluginError{Code: "GE", Description: "plugin execution failed"}
	ErrLockFailure           = PluginError{Code: "LF", Description: "registry lock unavailable"}
	ErrArchive               = PluginError{Code: "AR", Description: "invalid plugin archive"}
	ErrLibraryLoad           = PluginError{Code: "LL", Description: "failed to load native library"}
	ErrAmbiguous             = PluginError{Code: "AB", Description: "plugin id is loaded in more than one backend"}
)

var byCode = func() map[string]PluginError {
	m := make(map[string]PluginError)
	for _, e := range []PluginError{
		ErrParse, ErrValidation, ErrAbiMismatch, ErrPlatformIncompatible, ErrNotFound,
		ErrDisabled, ErrCapabilityUnsupported, ErrInstantiation, ErrEntryPointMissing,
		ErrGuestExecution, ErrLockFailure, ErrArchive, ErrLibraryLoad, ErrAmbiguous,
	} {
		m[e.Code] = e
	}

	return m
}()

// Lookup returns the predefined error for code.
func Lookup(code string) (PluginError, bool) {
	e, ok := byCode[code]

	return e, ok
}

// FromWire rebuilds an error received as a code and its rendered text.
// Unknown codes keep the text as the description.
func FromWire(code, text string) PluginError {
	e, ok := Lookup(code)
	if !ok {
		return PluginError{Code: code, Description: strings.TrimPrefix(text, code+": ")}
	}
	e.Detail = strings.TrimPrefix(strings.TrimPrefix(text, e.Code+": "+e.Description), ": ")

	return e
}

// PluginError represents a plugin runtime error with its code and description.
type PluginError struct {
	Code        string // two-character error code
	Description string // human-readable description
	Detail      string // instance specific context, optional
	Err         error  // wrapped cause, optional
}

// Error implements the Go error interface: "<Code>: <Description>[: <Detail>][: <cause>]".
func (e PluginError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Description)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// CodeOnly returns only the error code (e.g., "NF"), for embedding in wire responses.
func (e PluginError) CodeOnly() string {
	return e.Code
}

// Message returns the error text without the code prefix.
func (e PluginError) Message() string {
	s := e.Error()

	return strings.TrimPrefix(s, e.Code+": ")
}

// Is reports whether target is a PluginError with the same code.
func (e PluginError) Is(target error) bool {
	var pe PluginError
	if !errors.As(target, &pe) {
		return false
	}

	return pe.Code == e.Code
}

// Unwrap returns the wrapped cause.
func (e PluginError) Unwrap() error {
	return e.Err
}

// Withf returns a copy of e carrying formatted detail.
func (e PluginError) Withf(format string, args ...any) PluginError {
	e.Detail = fmt.Sprintf(format, args...)

	return e
}

// Wrap returns a copy of e wrapping cause.
func (e PluginError) Wrap(cause error) PluginError {
	e.Err = cause

	return e
}

// CodeOf returns the code of the first PluginError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var pe PluginError
	if errors.As(err, &pe) {
		return pe.Code
	}

	return ""
}
