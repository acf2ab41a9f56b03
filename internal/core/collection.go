package core

import "encoding/json"

// Collection is the root of persisted state: every goal, newest first.
// It is a value type; each mutation returns a new Collection and leaves the
// receiver as it was, so a caller holding the old value never sees a
// partially applied change.
type Collection struct {
	goals []Goal
}

// NewCollection copies goals into a collection, normalising each one.
func NewCollection(goals ...Goal) Collection {
	out := make([]Goal, len(goals))
	for i, g := range goals {
		out[i] = Normalize(g)
	}
	return Collection{goals: out}
}

func (c Collection) Len() int { return len(c.goals) }

// Goals returns a copy of the goals in display order.
func (c Collection) Goals() []Goal {
	out := make([]Goal, len(c.goals))
	copy(out, c.goals)
	return out
}

func (c Collection) Find(id string) (Goal, bool) {
	for _, g := range c.goals {
		if g.ID == id {
			return g, true
		}
	}
	return Goal{}, false
}

// Add prepends g.
func (c Collection) Add(g Goal) Collection {
	out := make([]Goal, 0, len(c.goals)+1)
	out = append(out, g)
	out = append(out, c.goals...)
	return Collection{goals: out}
}

// Delete removes the goal with the given id. Removing an unknown id returns
// an equal collection and false.
func (c Collection) Delete(id string) (Collection, bool) {
	out := make([]Goal, 0, len(c.goals))
	found := false
	for _, g := range c.goals {
		if g.ID == id {
			found = true
			continue
		}
		out = append(out, g)
	}
	if !found {
		return c, false
	}
	return Collection{goals: out}, true
}

// Record appends a transaction to the goal with the given id. Every other
// goal keeps its position and value.
func (c Collection) Record(l Ledger, id string, amount Money, note string) (Collection, Goal, bool) {
	for i, g := range c.goals {
		if g.ID != id {
			continue
		}
		updated := l.RecordTransaction(g, amount, note)
		out := make([]Goal, len(c.goals))
		copy(out, c.goals)
		out[i] = updated
		return Collection{goals: out}, updated, true
	}
	return c, Goal{}, false
}

func (c Collection) MarshalJSON() ([]byte, error) {
	if c.goals == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.goals)
}

// UnmarshalJSON decodes a persisted blob and recomputes every saved amount,
// so a hand-edited or stale cache never leaks into the model.
func (c *Collection) UnmarshalJSON(b []byte) error {
	var goals []Goal
	if err := json.Unmarshal(b, &goals); err != nil {
		return err
	}
	*c = NewCollection(goals...)
	return nil
}
