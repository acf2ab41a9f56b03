package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Save     TransactionKind = "save"
	Withdraw TransactionKind = "withdraw"
)

const (
	StatusActive    GoalStatus = "active"
	StatusCompleted GoalStatus = "completed"
	StatusOverdue   GoalStatus = "overdue"
)

type (
	TransactionKind string
	GoalStatus      string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one signed movement on a goal. Positive amounts are
	// deposits, negative amounts withdrawals.
	Transaction struct {
		ID     string    `json:"id"`
		Amount Money     `json:"amount"`
		Date   time.Time `json:"date"`
		Note   string    `json:"note,omitempty"`
	}

	// Goal is a savings target together with its append-only ledger.
	// SavedAmount is a cache of the clamped transaction sum and is kept in
	// step by every mutation in this package.
	Goal struct {
		ID           string        `json:"id"`
		Title        string        `json:"title"`
		TargetAmount Money         `json:"targetAmount"`
		TargetDate   Date          `json:"targetDate"`
		Image        []byte        `json:"image"`
		SavedAmount  Money         `json:"savedAmount"`
		Transactions []Transaction `json:"transactions"`
		CreatedAt    time.Time     `json:"createdAt"`
	}

	// GoalDraft carries user input for a new goal before it enters the ledger.
	GoalDraft struct {
		Title        string
		TargetAmount Money
		TargetDate   Date
		Image        []byte
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyTitle    = errors.New("empty title")
	ErrInvalidKind   = errors.New("invalid transaction kind")
	ErrExceedsSaved  = errors.New("withdrawal exceeds saved amount")
	ErrGoalNotFound  = errors.New("goal not found")
	ErrTitleTooLong  = errors.New("title too long (max 100 characters)")
	ErrNoteTooLong   = errors.New("note too long (max 200 characters)")
)

const (
	maxTitleLen = 100
	maxNoteLen  = 200
	dateLayout  = "2006-01-02"
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day at UTC midnight
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Older blobs may carry a full timestamp.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (k TransactionKind) Validate() error {
	switch k {
	case Save, Withdraw:
		return nil
	default:
		return ErrInvalidKind
	}
}

// Signed turns a positive amount entered by the user into the signed
// ledger amount for this kind.
func (k TransactionKind) Signed(amount Money) Money {
	if k == Withdraw {
		return Money{Cents: -amount.Cents}
	}
	return amount
}

func (d GoalDraft) Validate() error {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLen {
		return ErrTitleTooLong
	}
	if err := d.TargetAmount.Validate(); err != nil {
		return err
	}
	if err := d.TargetDate.Validate(); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// ValidateMovement checks a user-entered movement against the goal as it is
// currently displayed. Withdrawals are bounded by the saved amount.
func ValidateMovement(g Goal, kind TransactionKind, amount Money, note string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	if err := amount.Validate(); err != nil {
		return err
	}
	if len(note) > maxNoteLen {
		return ErrNoteTooLong
	}
	if kind == Withdraw && amount.Cents > g.SavedAmount.Cents {
		return ErrExceedsSaved
	}
	if kind == Save && g.SavedAmount.Cents > math.MaxInt64-amount.Cents {
		return ErrInvalidAmount
	}
	return nil
}
