package gateway

import (
	"fmt"

	"github.com/jonathan/claim-processor/internal/types"
)

// InvocationError represents a failed stage invocation
type InvocationError struct {
	Stage   types.StageName
	Message string
	Cause   error
}

func (e *InvocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invocation failed for %s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("invocation failed for %s: %s", e.Stage, e.Message)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}
