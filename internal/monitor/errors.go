package monitor

import (
	"context"
	"fmt"

	"github.com/tphakala/hostpulse/internal/errors"
)

// CollectionError reports a failed probe. No sample is written.
type CollectionError struct {
	HostID  string
	Timeout bool
	Err     error
}

func newCollectionError(hostID string, err error) *CollectionError {
	return &CollectionError{
		HostID:  hostID,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}

func (e *CollectionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("collection from host %s timed out: %v", e.HostID, e.Err)
	}
	return fmt.Sprintf("collection from host %s failed: %v", e.HostID, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

func (e *CollectionError) Category() errors.Category { return errors.CategoryCollection }
