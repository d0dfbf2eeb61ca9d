package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/fund_ledger/models"
)

// LeaseChecker reports whether this process may mutate the ledger.
type LeaseChecker interface {
	Held(ctx context.Context) bool
}

// EnforcePostingGate refuses a mutation when a writer lease is configured
// and not held. A nil lease means single-process mode.
func EnforcePostingGate(ctx context.Context, lease LeaseChecker) error {
	if lease == nil {
		return nil
	}
	if !lease.Held(ctx) {
		return ErrLeaseNotHeld
	}
	return nil
}

// IsPostingGateError reports whether err came from EnforcePostingGate or
// from a commit refused by the writer fence.
func IsPostingGateError(err error) bool {
	return errors.Is(err, ErrLeaseNotHeld) || errors.Is(err, models.ErrWriterFenced)
}
