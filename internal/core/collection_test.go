package core

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func threeGoals(l Ledger) Collection {
	var c Collection
	for _, title := range []string{"a", "b", "c"} {
		c = c.Add(l.CreateGoal(GoalDraft{Title: title, TargetAmount: FromMajor(100)}))
	}
	return c
}

func TestCollectionAddPrepends(t *testing.T) {
	c := threeGoals(fixedLedger(time.Now()))
	goals := c.Goals()
	if len(goals) != 3 || goals[0].Title != "c" || goals[2].Title != "a" {
		t.Fatalf("expected newest first, got %v", titles(goals))
	}
}

func TestCollectionDeleteUnknownIsNoop(t *testing.T) {
	c := threeGoals(fixedLedger(time.Now()))
	next, ok := c.Delete("missing")
	if ok {
		t.Fatalf("expected false for unknown id")
	}
	if !reflect.DeepEqual(next.Goals(), c.Goals()) {
		t.Fatalf("collection changed on unknown delete")
	}
}

func TestCollectionDelete(t *testing.T) {
	c := threeGoals(fixedLedger(time.Now()))
	id := c.Goals()[1].ID
	next, ok := c.Delete(id)
	if !ok || next.Len() != 2 {
		t.Fatalf("expected removal, got ok=%v len=%d", ok, next.Len())
	}
	if _, found := next.Find(id); found {
		t.Fatalf("deleted goal still present")
	}
	if c.Len() != 3 {
		t.Fatalf("receiver must not change")
	}
}

func TestCollectionRecordTouchesOnlyTarget(t *testing.T) {
	l := fixedLedger(time.Now())
	c := threeGoals(l)
	before := c.Goals()
	target := before[1].ID

	next, updated, ok := c.Record(l, target, FromMajor(40), "gaji")
	if !ok {
		t.Fatalf("expected goal to be found")
	}
	if updated.SavedAmount != FromMajor(40) {
		t.Fatalf("unexpected saved amount %d", updated.SavedAmount.Cents)
	}
	after := next.Goals()
	if !reflect.DeepEqual(after[0], before[0]) || !reflect.DeepEqual(after[2], before[2]) {
		t.Fatalf("other goals changed")
	}
	if !reflect.DeepEqual(c.Goals(), before) {
		t.Fatalf("receiver must not change")
	}

	same, _, ok := c.Record(l, "missing", FromMajor(1), "")
	if ok || !reflect.DeepEqual(same.Goals(), before) {
		t.Fatalf("unknown id must be a no-op")
	}
}

func TestCollectionJSONRecomputesSaved(t *testing.T) {
	blob := `[{"id":"g1","title":"Motor","targetAmount":1000,"targetDate":"2026-01-01","image":null,
		"savedAmount":999999,"transactions":[{"id":"t1","amount":100,"date":"2025-08-01T00:00:00Z"},
		{"id":"t2","amount":-300,"date":"2025-08-02T00:00:00Z"}],"createdAt":"2025-07-01T00:00:00Z"}]`
	var c Collection
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	g, ok := c.Find("g1")
	if !ok {
		t.Fatalf("goal missing")
	}
	if g.SavedAmount.Cents != 0 {
		t.Fatalf("expected saved amount recomputed to 0, got %d", g.SavedAmount.Cents)
	}

	out, err := json.Marshal(Collection{})
	if err != nil || string(out) != "[]" {
		t.Fatalf("empty collection should marshal to [], got %s (%v)", out, err)
	}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(Collection{}); s.Progress != 0 || s.Goals != 0 {
		t.Fatalf("expected zero summary, got %+v", s)
	}
	c := NewCollection(
		Goal{ID: "a", TargetAmount: FromMajor(1000), Transactions: []Transaction{{Amount: FromMajor(250)}}},
		Goal{ID: "b", TargetAmount: FromMajor(1000), Transactions: []Transaction{{Amount: FromMajor(1000)}}},
	)
	s := Summarize(c)
	if s.TotalSaved != FromMajor(1250) || s.TotalTarget != FromMajor(2000) {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.Progress != 62.5 || s.Completed != 1 || s.Goals != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func titles(goals []Goal) []string {
	out := make([]string, len(goals))
	for i, g := range goals {
		out[i] = g.Title
	}
	return out
}
