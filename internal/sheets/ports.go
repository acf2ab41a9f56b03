package sheets

import (
	"context"
	"errors"
	"time"

	"dreamsaver/internal/core"
)

// LedgerRow is one line of the spreadsheet mirror of the savings ledger.
type LedgerRow struct {
	OccurredAt    time.Time
	Event         string
	GoalID        string
	GoalTitle     string
	TransactionID string
	Amount        core.Money
	Saved         core.Money
	Target        core.Money
	TargetDate    string
	Note          string
}

func (r LedgerRow) Validate() error {
	if r.Event == "" {
		return errors.New("missing event")
	}
	if r.GoalID == "" {
		return errors.New("missing goal id")
	}
	if r.OccurredAt.IsZero() {
		return errors.New("missing timestamp")
	}
	return nil
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendRow(ctx context.Context, r LedgerRow) (rowRef string, err error)
	}
)
