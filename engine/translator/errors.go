package translator

import "fmt"

// UnsupportedError reports a relational construct with no translation
// rule. Permanent: the statement can never succeed as written.
type UnsupportedError struct {
	Construct string
	Detail    string
}

func (e *UnsupportedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported SQL construct: %s", e.Construct)
	}
	return fmt.Sprintf("unsupported SQL construct: %s (%s)", e.Construct, e.Detail)
}

func unsupported(construct, detail string) *UnsupportedError {
	return &UnsupportedError{Construct: construct, Detail: detail}
}

// FunctionArgumentError reports a function invocation whose argument
// shape has no document-query equivalent. Index is the 0-based
// position of the offending parameter.
type FunctionArgumentError struct {
	Function string
	Index    int
	Reason   string
}

func (e *FunctionArgumentError) Error() string {
	return fmt.Sprintf("unsupported argument for function %s, parameter index %d: %s",
		e.Function, e.Index, e.Reason)
}
