package engine

import "fmt"

// UnsupportedOperationError is returned when the active engine has no
// handler for a requested operation. The dispatcher never falls back to a
// different engine kind on this error, since that could silently change the
// performance and consistency characteristics the caller depends on;
// retrying elsewhere is a caller decision.
type UnsupportedOperationError struct {
	Operation string
	Kind      string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %q is not supported by the %s engine", e.Operation, e.Kind)
}
