package notify

import (
	"context"
	"errors"

	"github.com/erazemk/izposoja/internal/ledger"
)

// Multi delivers each event to every notifier, even after one fails.
type Multi []ledger.Notifier

// Notify implements ledger.Notifier.
func (m Multi) Notify(ctx context.Context, e ledger.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
