package mongosql

import (
	"errors"
	"fmt"

	"github.com/mongosql-engine/mongosql/engine/ast"
	"github.com/mongosql-engine/mongosql/engine/mql"
	"github.com/mongosql-engine/mongosql/engine/translator"
)

// ParameterError reports statement misuse the caller can correct:
// a bind index out of range, execution with unbound parameters, or an
// empty batch. Index is 1-based; 0 means the error is not tied to one
// parameter.
type ParameterError struct {
	Index  int
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("parameter %d: %s", e.Index, e.Reason)
	}
	return e.Reason
}

// ExecutionError wraps a failure raised by the store while executing a
// command.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError wraps a timeout-flavored execution failure (socket
// read/write timeout, server-side execution timeout) so callers can
// apply timeout-specific retry policy upstream. This layer itself
// never retries.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsUnsupported reports whether err is a permanent unsupported-feature
// failure: a construct, function argument shape or projection with no
// translation rule.
func IsUnsupported(err error) bool {
	var ue *translator.UnsupportedError
	var fe *translator.FunctionArgumentError
	var pe *ast.ProjectionError
	return errors.As(err, &ue) || errors.As(err, &fe) || errors.As(err, &pe)
}

// IsSyntax reports whether err is a command-text syntax failure.
func IsSyntax(err error) bool {
	var se *mql.SyntaxError
	return errors.As(err, &se)
}

// IsParameter reports whether err is a caller-correctable parameter
// failure.
func IsParameter(err error) bool {
	var pe *ParameterError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is the distinguished timeout category.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsExecution reports whether err is a generic execution failure.
// Timeouts are their own category and answer false here.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
