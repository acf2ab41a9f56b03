package http

import (
	"time"

	"dreamsaver/internal/core"
)

// goalView is a goal as the client renders it, with every derived value
// computed against the server clock.
type goalView struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	TargetAmount     core.Money        `json:"targetAmount"`
	TargetDate       core.Date         `json:"targetDate"`
	SavedAmount      core.Money        `json:"savedAmount"`
	CreatedAt        time.Time         `json:"createdAt"`
	Transactions     []transactionView `json:"transactions"`
	ImageURL         string            `json:"imageUrl,omitempty"`
	Progress         float64           `json:"progress"`
	Remaining        core.Money        `json:"remaining"`
	Completed        bool              `json:"completed"`
	Status           core.GoalStatus   `json:"status"`
	DaysRemaining    int               `json:"daysRemaining"`
	DailySaving      *core.Money       `json:"dailySaving,omitempty"`
	SavedLabel       string            `json:"savedLabel"`
	TargetLabel      string            `json:"targetLabel"`
	RemainingLabel   string            `json:"remainingLabel"`
	DailySavingLabel string            `json:"dailySavingLabel,omitempty"`
	TargetDateLabel  string            `json:"targetDateLabel"`
}

type transactionView struct {
	ID          string     `json:"id"`
	Amount      core.Money `json:"amount"`
	AmountLabel string     `json:"amountLabel"`
	Kind        string     `json:"kind"`
	Date        time.Time  `json:"date"`
	Note        string     `json:"note,omitempty"`
}

type seriesView struct {
	GoalID string             `json:"goalId"`
	Points []core.SeriesPoint `json:"points"`
}

type summaryView struct {
	core.Summary
	TotalSavedLabel  string `json:"totalSavedLabel"`
	TotalTargetLabel string `json:"totalTargetLabel"`
}

type adviceView struct {
	GoalID string `json:"goalId"`
	Advice string `json:"advice"`
}

func newGoalView(g core.Goal, now time.Time) goalView {
	v := goalView{
		ID:              g.ID,
		Title:           g.Title,
		TargetAmount:    g.TargetAmount,
		TargetDate:      g.TargetDate,
		SavedAmount:     g.SavedAmount,
		CreatedAt:       g.CreatedAt,
		Transactions:    make([]transactionView, 0, len(g.Transactions)),
		Progress:        core.Progress(g),
		Remaining:       core.Remaining(g),
		Completed:       core.IsCompleted(g),
		Status:          core.Status(g, now),
		DaysRemaining:   core.DaysRemaining(g, now),
		SavedLabel:      g.SavedAmount.String(),
		TargetLabel:     g.TargetAmount.String(),
		RemainingLabel:  core.Remaining(g).String(),
		TargetDateLabel: core.LongDateLabel(g.TargetDate.Time),
	}
	if len(g.Image) > 0 {
		v.ImageURL = "/api/goals/" + g.ID + "/image"
	}
	if daily, ok := core.RecommendedDailySaving(g, now); ok {
		v.DailySaving = &daily
		v.DailySavingLabel = daily.String()
	}
	for _, t := range g.Transactions {
		kind := core.Save
		if t.Amount.Cents < 0 {
			kind = core.Withdraw
		}
		v.Transactions = append(v.Transactions, transactionView{
			ID:          t.ID,
			Amount:      t.Amount,
			AmountLabel: t.Amount.String(),
			Kind:        string(kind),
			Date:        t.Date,
			Note:        t.Note,
		})
	}
	return v
}

func newSummaryView(s core.Summary) summaryView {
	return summaryView{
		Summary:          s,
		TotalSavedLabel:  s.TotalSaved.String(),
		TotalTargetLabel: s.TotalTarget.String(),
	}
}
