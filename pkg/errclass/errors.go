// Package errclass defines the stable error classes reported by beam.
package errclass

import (
	"fmt"
	"strings"
)

// BeamError is a stable, machine-readable error class.
//
// Output carries text captured from a failed subprocess (usually stderr) so
// callers can show the underlying tool's complaint verbatim.
type BeamError struct {
	Code    string
	Message string
	Output  string
}

func (e *BeamError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *BeamError) Is(target error) bool {
	t, ok := target.(*BeamError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new BeamError with the same Code but a specific message.
func (e *BeamError) WithMessage(msg string) *BeamError {
	return &BeamError{Code: e.Code, Message: msg, Output: e.Output}
}

// WithMessagef returns a new BeamError with a formatted message.
func (e *BeamError) WithMessagef(format string, args ...any) *BeamError {
	return &BeamError{Code: e.Code, Message: fmt.Sprintf(format, args...), Output: e.Output}
}

// WithOutput returns a copy of e carrying captured subprocess output.
func (e *BeamError) WithOutput(output string) *BeamError {
	return &BeamError{Code: e.Code, Message: e.Message, Output: output}
}

// Error classes.
var (
	ErrVcs           = &BeamError{Code: "E_VCS"}
	ErrConfiguration = &BeamError{Code: "E_CONFIGURATION"}
	ErrNameInvalid   = &BeamError{Code: "E_NAME_INVALID"}
	ErrPathUnsafe    = &BeamError{Code: "E_PATH_UNSAFE"}
	ErrTransfer      = &BeamError{Code: "E_TRANSFER"}
	ErrCommand       = &BeamError{Code: "E_COMMAND"}
	ErrAborted       = &BeamError{Code: "E_ABORTED"}
	ErrLocked        = &BeamError{Code: "E_LOCKED"}
)
