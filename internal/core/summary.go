package core

// Summary aggregates the whole collection for the dashboard.
type Summary struct {
	TotalSaved  Money   `json:"totalSaved"`
	TotalTarget Money   `json:"totalTarget"`
	Progress    float64 `json:"progress"`
	Goals       int     `json:"goals"`
	Completed   int     `json:"completed"`
}

// Summarize computes totals across every goal. Progress is zero for an
// empty collection.
func Summarize(c Collection) Summary {
	var s Summary
	for _, g := range c.goals {
		s.TotalSaved = s.TotalSaved.Add(g.SavedAmount)
		s.TotalTarget = s.TotalTarget.Add(g.TargetAmount)
		if IsCompleted(g) {
			s.Completed++
		}
	}
	s.Goals = len(c.goals)
	if s.Goals > 0 && s.TotalTarget.Cents > 0 {
		s.Progress = float64(s.TotalSaved.Cents) / float64(s.TotalTarget.Cents) * 100
	}
	return s
}
