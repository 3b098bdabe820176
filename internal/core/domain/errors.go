package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter marks configuration or input rejected before any work starts.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrProjection is returned by the reprojection collaborator for out-of-domain coordinates.
	ErrProjection = errors.New("projection error")
	// ErrNotFound is returned by repositories when no domain matches.
	ErrNotFound = errors.New("not found")
)

// InvalidParameter formats a message wrapped around ErrInvalidParameter.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// BatchError identifies the batch whose failure aborted a parallel run.
type BatchError struct {
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
