package store

import "fmt"

// StoreError represents a persistence failure
type StoreError struct {
	Op      string
	ClaimID string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store %s failed for claim %s: %v", e.Op, e.ClaimID, e.Cause)
	}
	return fmt.Sprintf("store %s failed for claim %s", e.Op, e.ClaimID)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
