package service

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is reported when a pass for the linkage is already running.
var ErrSyncInProgress = errors.New("sync already in progress")

// NotFoundError reports a missing linkage or account.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
