package memory

import (
	"context"
	"testing"
	"time"

	"dreamsaver/internal/sheets"
)

func TestMemoryStoreAppendRow(t *testing.T) {
	s := New()
	ref, err := s.AppendRow(context.Background(), sheets.LedgerRow{
		OccurredAt: time.Now(),
		Event:      "goal.created",
		GoalID:     "g1",
		GoalTitle:  "Laptop",
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].GoalTitle != "Laptop" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	rows[0].GoalTitle = "changed"
	if s.Rows()[0].GoalTitle != "Laptop" {
		t.Fatal("Rows must return a copy")
	}
}

func TestMemoryStoreRejectsInvalidRow(t *testing.T) {
	s := New()
	if _, err := s.AppendRow(context.Background(), sheets.LedgerRow{Event: "goal.created"}); err == nil {
		t.Fatal("expected validation error")
	}
	if len(s.Rows()) != 0 {
		t.Fatal("invalid row stored")
	}
}
