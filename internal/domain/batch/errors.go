package batch

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("batch not found")
	ErrBatchFrozen    = errors.New("batch is frozen; unfreeze it before editing")
	ErrBatchNotFrozen = errors.New("batch is not frozen")
)

// VersionConflictError rejects a write carrying a stale version. The caller
// reloads the batch and re-applies the edit; nothing is ever merged.
type VersionConflictError struct {
	BatchID int64
	Version int64 // the stale version the caller presented
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("batch %d was changed by another user (stale version %d): reload and retry", e.BatchID, e.Version)
}
