package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dreamsaver/internal/advice"
	"dreamsaver/internal/amqp"
	"dreamsaver/internal/core"
	"dreamsaver/internal/imaging"
	"dreamsaver/internal/storage"
)

const testKey = "dreamsaver_data_v1"

var testNow = time.Date(2025, 8, 17, 9, 0, 0, 0, time.UTC)

func testLedger() core.Ledger {
	var mu sync.Mutex
	n := 0
	return core.Ledger{
		Now: func() time.Time { return testNow },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

type flakyStore struct {
	*storage.MemoryStore
	failSave bool
}

func (f *flakyStore) Save(ctx context.Context, key string, value []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, key, value)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fakeBaker struct {
	out []byte
	err error
}

func (b fakeBaker) Bake([]byte, imaging.View) ([]byte, error) { return b.out, b.err }

type fakeAdvisor struct{ got advice.Request }

func (a *fakeAdvisor) Advise(_ context.Context, req advice.Request) string {
	a.got = req
	return "Semangat!"
}

type countingRecorder struct {
	events []string
	count  int
}

func (r *countingRecorder) ObserveLedgerEvent(e string) { r.events = append(r.events, e) }
func (r *countingRecorder) SetGoalCount(n int)          { r.count = n }

func newTestService(store storage.BlobStore, pub Publisher) *GoalService {
	opts := Options{Store: store, Key: testKey, Ledger: testLedger()}
	if pub != nil {
		opts.Publisher = pub
	}
	return NewGoalService(opts)
}

func draft(title string, target int64) core.GoalDraft {
	return core.GoalDraft{
		Title:        title,
		TargetAmount: core.FromMajor(target),
		TargetDate:   core.NewDate(2026, 1, 1),
	}
}

func TestHydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing blob", func(t *testing.T) {
		s := newTestService(storage.NewMemoryStore(), nil)
		s.Hydrate(ctx)
		if n := len(s.List()); n != 0 {
			t.Fatalf("expected empty collection, got %d goals", n)
		}
	})

	t.Run("malformed blob", func(t *testing.T) {
		store := storage.NewMemoryStore()
		store.Save(ctx, testKey, []byte(`{not json`))
		s := newTestService(store, nil)
		s.Hydrate(ctx)
		if n := len(s.List()); n != 0 {
			t.Fatalf("expected empty collection, got %d goals", n)
		}
	})

	t.Run("stale saved amount is recomputed", func(t *testing.T) {
		store := storage.NewMemoryStore()
		blob := `[{"id":"g1","title":"Laptop","targetAmount":1000,"targetDate":"2026-01-01","image":null,
			"savedAmount":999,"transactions":[{"id":"t1","amount":100,"date":"2025-08-01T00:00:00Z"},
			{"id":"t2","amount":-30,"date":"2025-08-02T00:00:00Z"}],"createdAt":"2025-08-01T00:00:00Z"}]`
		store.Save(ctx, testKey, []byte(blob))

		s := newTestService(store, nil)
		s.Hydrate(ctx)
		g, ok := s.Get("g1")
		if !ok {
			t.Fatal("goal g1 not loaded")
		}
		if g.SavedAmount != core.FromMajor(70) {
			t.Errorf("SavedAmount = %v, want 70", g.SavedAmount.Major())
		}
	})
}

func TestCreateGoalPersistsAndPrepends(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pub := &fakePublisher{}
	s := newTestService(store, pub)

	first, err := s.CreateGoal(ctx, draft("Laptop", 15000000), nil, imaging.View{})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	second, err := s.CreateGoal(ctx, draft("Sepeda", 2000000), nil, imaging.View{})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	goals := s.List()
	if len(goals) != 2 || goals[0].ID != second.ID || goals[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", goals)
	}
	if first.SavedAmount.Cents != 0 || len(first.Transactions) != 0 || !first.CreatedAt.Equal(testNow) {
		t.Errorf("unexpected new goal %+v", first)
	}

	reloaded := newTestService(store, nil)
	reloaded.Hydrate(ctx)
	if got := len(reloaded.List()); got != 2 {
		t.Fatalf("reloaded %d goals, want 2", got)
	}

	if got := pub.types(); len(got) != 2 || got[0] != amqp.EventGoalCreated {
		t.Errorf("published %v", got)
	}
}

func TestCreateGoalValidation(t *testing.T) {
	s := newTestService(storage.NewMemoryStore(), nil)
	tests := []struct {
		name string
		d    core.GoalDraft
		want error
	}{
		{"empty title", draft("  ", 100), core.ErrEmptyTitle},
		{"zero target", draft("Laptop", 0), core.ErrInvalidAmount},
		{"no date", core.GoalDraft{Title: "Laptop", TargetAmount: core.FromMajor(1)}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateGoal(context.Background(), tt.d, nil, imaging.View{})
			if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(s.List()) != 0 {
		t.Fatal("invalid drafts must not be stored")
	}
}

func TestCreateGoalImage(t *testing.T) {
	ctx := context.Background()
	view := imaging.View{Scale: 1, ViewportSize: 400}

	s := NewGoalService(Options{Store: storage.NewMemoryStore(), Ledger: testLedger(), Baker: fakeBaker{out: []byte{0xff, 0xd8}}})
	g, err := s.CreateGoal(ctx, draft("Kamera", 5000000), []byte("raw"), view)
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if string(g.Image) != string([]byte{0xff, 0xd8}) {
		t.Errorf("image = %v, want baked bytes", g.Image)
	}

	s = NewGoalService(Options{Store: storage.NewMemoryStore(), Ledger: testLedger(), Baker: fakeBaker{err: imaging.ErrDecode}})
	g, err = s.CreateGoal(ctx, draft("Kamera", 5000000), []byte("not an image"), view)
	if err != nil {
		t.Fatalf("a bad picture must not fail creation: %v", err)
	}
	if g.Image != nil {
		t.Errorf("expected no image after bake failure, got %d bytes", len(g.Image))
	}
}

func TestCreateGoalCancelledBeforeCommit(t *testing.T) {
	s := newTestService(storage.NewMemoryStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.CreateGoal(ctx, draft("Laptop", 100), nil, imaging.View{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("cancelled creation must not be committed")
	}
}

func TestRecordTransaction(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	s := newTestService(storage.NewMemoryStore(), pub)
	g, _ := s.CreateGoal(ctx, draft("Motor", 1000), nil, imaging.View{})
	other, _ := s.CreateGoal(ctx, draft("HP", 500), nil, imaging.View{})

	g, err := s.RecordTransaction(ctx, g.ID, core.Save, core.FromMajor(100), "gaji")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	g, err = s.RecordTransaction(ctx, g.ID, core.Withdraw, core.FromMajor(30), "")
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if g.SavedAmount != core.FromMajor(70) || len(g.Transactions) != 2 {
		t.Fatalf("unexpected goal %+v", g)
	}
	if g.Transactions[1].Amount != core.FromMajor(-30) {
		t.Errorf("withdrawal stored as %v", g.Transactions[1].Amount.Major())
	}

	if _, err := s.RecordTransaction(ctx, g.ID, core.Withdraw, core.FromMajor(71), ""); !errors.Is(err, core.ErrExceedsSaved) {
		t.Errorf("overdraw err = %v, want ErrExceedsSaved", err)
	}
	if _, err := s.RecordTransaction(ctx, g.ID, core.Save, core.Money{}, ""); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	if _, err := s.RecordTransaction(ctx, "missing", core.Save, core.FromMajor(1), ""); !errors.Is(err, core.ErrGoalNotFound) {
		t.Errorf("unknown goal err = %v, want ErrGoalNotFound", err)
	}

	untouched, _ := s.Get(other.ID)
	if len(untouched.Transactions) != 0 {
		t.Error("other goals must not change")
	}

	series, err := s.Series(g.ID)
	if err != nil || len(series) != 2 || series[1].Amount != core.FromMajor(70) {
		t.Errorf("series = %+v, %v", series, err)
	}

	types := pub.types()
	if types[len(types)-1] != amqp.EventTransactionRecorded {
		t.Errorf("last event = %s", types[len(types)-1])
	}
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	pub := &fakePublisher{}
	s := newTestService(store, pub)
	g, _ := s.CreateGoal(ctx, draft("Laptop", 1000), nil, imaging.View{})

	store.failSave = true
	if _, err := s.RecordTransaction(ctx, g.ID, core.Save, core.FromMajor(10), ""); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := s.CreateGoal(ctx, draft("HP", 10), nil, imaging.View{}); err == nil {
		t.Fatal("expected save error")
	}
	if err := s.DeleteGoal(ctx, g.ID); err == nil {
		t.Fatal("expected save error")
	}

	goals := s.List()
	if len(goals) != 1 || len(goals[0].Transactions) != 0 {
		t.Fatalf("state changed after failed saves: %+v", goals)
	}
	if n := len(pub.types()); n != 1 {
		t.Errorf("failed actions must not publish, got %d events", n)
	}
}

func TestDeleteGoal(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	rec := &countingRecorder{}
	s := NewGoalService(Options{Store: storage.NewMemoryStore(), Ledger: testLedger(), Publisher: pub, Recorder: rec})
	g, _ := s.CreateGoal(ctx, draft("Laptop", 1000), nil, imaging.View{})

	if err := s.DeleteGoal(ctx, "missing"); err != nil {
		t.Fatalf("deleting an unknown id: %v", err)
	}
	if len(s.List()) != 1 || rec.count != 1 {
		t.Fatal("unknown id must be a no-op")
	}

	if err := s.DeleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if len(s.List()) != 0 || rec.count != 0 {
		t.Fatal("goal not removed")
	}
	got := pub.types()
	if len(got) != 2 || got[1] != amqp.EventGoalDeleted {
		t.Errorf("published %v", got)
	}
	if pub.events[1].GoalTitle != "Laptop" {
		t.Errorf("delete event lost the title: %+v", pub.events[1])
	}
	if len(rec.events) != 2 {
		t.Errorf("recorded %v", rec.events)
	}
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	s := newTestService(storage.NewMemoryStore(), &fakePublisher{err: errors.New("broker down")})
	if _, err := s.CreateGoal(context.Background(), draft("Laptop", 1000), nil, imaging.View{}); err != nil {
		t.Fatalf("publish errors must be swallowed: %v", err)
	}
	if len(s.List()) != 1 {
		t.Fatal("goal not stored")
	}
}

func TestAdvice(t *testing.T) {
	ctx := context.Background()
	s := newTestService(storage.NewMemoryStore(), nil)
	g, _ := s.CreateGoal(ctx, draft("Laptop", 1000), nil, imaging.View{})

	text, err := s.Advice(ctx, g.ID)
	if err != nil || text != advice.MissingKeyMessage {
		t.Fatalf("Advice without advisor = %q, %v", text, err)
	}
	if _, err := s.Advice(ctx, "missing"); !errors.Is(err, core.ErrGoalNotFound) {
		t.Fatalf("err = %v, want ErrGoalNotFound", err)
	}

	adv := &fakeAdvisor{}
	s = NewGoalService(Options{Store: storage.NewMemoryStore(), Ledger: testLedger(), Advisor: adv})
	g, _ = s.CreateGoal(ctx, draft("Laptop", 1000), nil, imaging.View{})
	text, _ = s.Advice(ctx, g.ID)
	if text != "Semangat!" || adv.got.Title != "Laptop" || adv.got.DaysRemaining <= 0 {
		t.Errorf("advice %q for request %+v", text, adv.got)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestService(storage.NewMemoryStore(), nil)
	a, _ := s.CreateGoal(ctx, draft("A", 100), nil, imaging.View{})
	s.CreateGoal(ctx, draft("B", 300), nil, imaging.View{})
	s.RecordTransaction(ctx, a.ID, core.Save, core.FromMajor(100), "")

	sum := s.Summary()
	if sum.Goals != 2 || sum.Completed != 1 || sum.Progress != 25 {
		t.Errorf("summary = %+v", sum)
	}
}
