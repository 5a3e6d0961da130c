package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"valeservice/internal/common"
	"valeservice/internal/repositories"
)

// setLockTimeout bounds how long statements of the current transaction wait
// for row locks.
func setLockTimeout(ctx context.Context, q repositories.DBTX, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	if _, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return nil
}

// storageError classifies an error coming out of a repository. Errors that
// already carry a kind pass through unchanged.
func storageError(op string, err error) error {
	var oe *common.OrderError
	if errors.As(err, &oe) {
		return err
	}
	if repositories.IsTransient(err) {
		return common.NewTransientError(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// commitError classifies a failed COMMIT. All writes had succeeded at this
// point, so anything that is not retryable is a consistency problem.
func commitError(op string, err error) error {
	if repositories.IsTransient(err) {
		return common.NewTransientError(op, err)
	}
	return common.NewIntegrityError(op, "commit failed after all writes succeeded", err)
}
