// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// StackFrame represents a single frame in the call stack at the moment a
// runtime error was raised: the function's own name and the source line
// its instruction pointer had reached.
type StackFrame struct {
	Name       string // function name, or "script" for the top-level frame
	SourceLine int    // source line number (0 if unknown)
}

// RuntimeError represents a runtime error with stack trace information,
// giving detailed context about where in the call stack an error occurred.
type RuntimeError struct {
	Message    string       // Error message
	StackTrace []StackFrame // Call stack at time of error, innermost last
}

// Error implements the error interface.
// It formats the error message with a stack trace, innermost frame first —
// the same order the reference implementation's runtimeError() prints in.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  [line %d] in %s", frame.SourceLine, frame.Name))
		}
	}

	return b.String()
}

// newRuntimeError creates a new RuntimeError with the given message.
func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{
		Message:    message,
		StackTrace: stack,
	}
}
