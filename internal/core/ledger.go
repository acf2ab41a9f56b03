package core

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

// Ledger creates goals and records movements. Its clock and id source are
// replaceable so callers can pin them in tests.
type Ledger struct {
	Now   func() time.Time
	NewID func() string
}

// NewLedger returns a Ledger using wall-clock time and random UUIDs.
func NewLedger() Ledger {
	return Ledger{Now: time.Now, NewID: uuid.NewString}
}

// CreateGoal builds a goal with a fresh id, nothing saved and an empty ledger.
// Input is trusted; validation happens at the boundary.
func (l Ledger) CreateGoal(d GoalDraft) Goal {
	return Goal{
		ID:           l.NewID(),
		Title:        d.Title,
		TargetAmount: d.TargetAmount,
		TargetDate:   d.TargetDate,
		Image:        d.Image,
		Transactions: []Transaction{},
		CreatedAt:    l.Now(),
	}
}

// RecordTransaction returns a copy of g with one more transaction appended.
// The original goal and its transaction slice are left untouched.
func (l Ledger) RecordTransaction(g Goal, amount Money, note string) Goal {
	txs := make([]Transaction, len(g.Transactions), len(g.Transactions)+1)
	copy(txs, g.Transactions)
	txs = append(txs, Transaction{
		ID:     l.NewID(),
		Amount: amount,
		Date:   l.Now(),
		Note:   note,
	})
	g.Transactions = txs
	g.SavedAmount = SavedAmount(txs)
	return g
}

// Balance is the raw signed sum of all transactions. It may be negative.
func Balance(txs []Transaction) Money {
	var sum int64
	for _, t := range txs {
		sum += t.Amount.Cents
	}
	return Money{Cents: sum}
}

// SavedAmount is the balance clamped at zero.
func SavedAmount(txs []Transaction) Money {
	b := Balance(txs)
	if b.Cents < 0 {
		return Money{}
	}
	return b
}

// Normalize recomputes the cached saved amount from the ledger.
func Normalize(g Goal) Goal {
	if g.Transactions == nil {
		g.Transactions = []Transaction{}
	}
	g.SavedAmount = SavedAmount(g.Transactions)
	return g
}

// Progress returns saved/target as a percentage. It is not clamped, so an
// over-funded goal reports more than 100.
func Progress(g Goal) float64 {
	if g.TargetAmount.Cents == 0 {
		return 0
	}
	return float64(g.SavedAmount.Cents) / float64(g.TargetAmount.Cents) * 100
}

func IsCompleted(g Goal) bool {
	return g.SavedAmount.Cents >= g.TargetAmount.Cents
}

// Remaining returns what is left to save, never negative.
func Remaining(g Goal) Money {
	r := g.TargetAmount.Sub(g.SavedAmount)
	if r.Cents < 0 {
		return Money{}
	}
	return r
}

// DaysRemaining is the number of days from now until the target date,
// rounded up. Zero or negative once the date has been reached.
func DaysRemaining(g Goal, now time.Time) int {
	diff := g.TargetDate.Sub(now)
	return int(math.Ceil(float64(diff) / float64(day)))
}

// RecommendedDailySaving spreads the remaining amount over the days left,
// rounded up to the next minor unit. ok is false when no days are left.
func RecommendedDailySaving(g Goal, now time.Time) (Money, bool) {
	days := DaysRemaining(g, now)
	if days <= 0 {
		return Money{}, false
	}
	rem := Remaining(g).Cents
	perDay := rem / int64(days)
	if rem%int64(days) != 0 {
		perDay++
	}
	return Money{Cents: perDay}, true
}

// Status derives the display phase of a goal. It is never stored, so a
// completed goal drops back to active after a withdrawal.
func Status(g Goal, now time.Time) GoalStatus {
	switch {
	case IsCompleted(g):
		return StatusCompleted
	case DaysRemaining(g, now) <= 0:
		return StatusOverdue
	default:
		return StatusActive
	}
}
