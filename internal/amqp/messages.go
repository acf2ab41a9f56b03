package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"dreamsaver/internal/core"
)

// EventType names a change to the goal collection.
type EventType string

const (
	EventGoalCreated         EventType = "goal.created"
	EventGoalDeleted         EventType = "goal.deleted"
	EventTransactionRecorded EventType = "transaction.recorded"
)

var ErrUnknownEventType = errors.New("unknown event type")

// LedgerEvent is published after a change has been persisted. It carries
// enough of the goal to be mirrored without reading the store.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	GoalID        string    `json:"goal_id"`
	GoalTitle     string    `json:"goal_title"`
	TargetCents   int64     `json:"target_cents"`
	TargetDate    string    `json:"target_date,omitempty"`
	SavedCents    int64     `json:"saved_cents"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Note          string    `json:"note,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newEvent(t EventType, g core.Goal, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		ID:          uuid.NewString(),
		Type:        t,
		GoalID:      g.ID,
		GoalTitle:   g.Title,
		TargetCents: g.TargetAmount.Cents,
		TargetDate:  g.TargetDate.String(),
		SavedCents:  g.SavedAmount.Cents,
		OccurredAt:  at,
	}
}

// NewGoalCreated describes a newly created goal.
func NewGoalCreated(g core.Goal) *LedgerEvent {
	return newEvent(EventGoalCreated, g, g.CreatedAt)
}

// NewGoalDeleted describes a goal removed from the collection.
func NewGoalDeleted(g core.Goal, at time.Time) *LedgerEvent {
	return newEvent(EventGoalDeleted, g, at)
}

// NewTransactionRecorded describes the last transaction of g.
func NewTransactionRecorded(g core.Goal) *LedgerEvent {
	if len(g.Transactions) == 0 {
		return newEvent(EventTransactionRecorded, g, time.Now())
	}
	tx := g.Transactions[len(g.Transactions)-1]
	e := newEvent(EventTransactionRecorded, g, tx.Date)
	e.TransactionID = tx.ID
	e.AmountCents = tx.Amount.Cents
	e.Note = tx.Note
	return e
}

// Validate checks the fields every consumer relies on.
func (e *LedgerEvent) Validate() error {
	switch e.Type {
	case EventGoalCreated, EventGoalDeleted, EventTransactionRecorded:
	default:
		return ErrUnknownEventType
	}
	if e.GoalID == "" {
		return errors.New("event without goal id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
