package traffic

import "fmt"

// StorageError reports a failure in the traffic store.
type StorageError struct {
	Operation string // "save_request", "search", "cleanup", ...
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("traffic storage %s: %v", e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError for the given operation.
func NewStorageError(operation string, cause error) *StorageError {
	return &StorageError{Operation: operation, Cause: cause}
}
