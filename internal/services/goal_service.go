package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dreamsaver/internal/advice"
	"dreamsaver/internal/amqp"
	"dreamsaver/internal/core"
	"dreamsaver/internal/imaging"
	"dreamsaver/internal/log"
	"dreamsaver/internal/storage"
)

// ErrInvalidInput wraps every validation failure returned by the service.
var ErrInvalidInput = errors.New("invalid input")

type (
	// Publisher sends ledger events to the mirror. The AMQP client implements it.
	Publisher interface {
		Publish(ctx context.Context, event *amqp.LedgerEvent) error
	}

	// ImageBaker renders the cropped goal picture.
	ImageBaker interface {
		Bake(src []byte, v imaging.View) ([]byte, error)
	}

	// Advisor produces advice text. It never fails.
	Advisor interface {
		Advise(ctx context.Context, req advice.Request) string
	}

	// Recorder observes ledger activity, e.g. for metrics.
	Recorder interface {
		ObserveLedgerEvent(event string)
		SetGoalCount(n int)
	}
)

// Options wires the collaborators of a GoalService. Only Store is required.
type Options struct {
	Store     storage.BlobStore
	Key       string
	Ledger    core.Ledger
	Baker     ImageBaker
	Advisor   Advisor
	Publisher Publisher
	Recorder  Recorder
	Logger    *log.Logger
}

// GoalService owns the goal collection. Every action runs under one mutex,
// builds a new collection, saves it and only then swaps it in, so readers
// see either the previous or the next state.
type GoalService struct {
	mu   sync.Mutex
	root core.Collection

	store     storage.BlobStore
	key       string
	ledger    core.Ledger
	baker     ImageBaker
	advisor   Advisor
	publisher Publisher
	recorder  Recorder
	logger    *log.Logger
	events    *log.StructuredLogger
}

func NewGoalService(opts Options) *GoalService {
	if opts.Key == "" {
		opts.Key = "dreamsaver_data_v1"
	}
	if opts.Ledger.Now == nil || opts.Ledger.NewID == nil {
		opts.Ledger = core.NewLedger()
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &GoalService{
		root:      core.NewCollection(),
		store:     opts.Store,
		key:       opts.Key,
		ledger:    opts.Ledger,
		baker:     opts.Baker,
		advisor:   opts.Advisor,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    opts.Logger.WithComponent(log.ComponentGoal),
		events:    log.NewStructuredLogger(opts.Logger),
	}
}

// Hydrate loads the persisted collection. A missing or unreadable blob
// leaves the service with an empty collection; the problem is logged only.
func (s *GoalService) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = core.NewCollection()
	defer s.observeCount()

	if s.store == nil {
		return
	}
	blob, err := s.store.Load(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.InfoContext(ctx, "No saved goals yet", log.FieldOperation, log.OpHydrate)
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load goals, starting empty", log.FieldOperation, log.OpHydrate, log.FieldError, err.Error())
		return
	}

	var c core.Collection
	if err := json.Unmarshal(blob, &c); err != nil {
		s.logger.WarnContext(ctx, "Saved goals are malformed, starting empty", log.FieldOperation, log.OpHydrate, log.FieldError, err.Error())
		return
	}
	s.root = c
	s.logger.InfoContext(ctx, "Goals loaded", log.FieldOperation, log.OpHydrate, "goals", c.Len())
}

// Now is the clock used for derived fields.
func (s *GoalService) Now() time.Time { return s.ledger.Now() }

// List returns every goal, newest first.
func (s *GoalService) List() []core.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Goals()
}

func (s *GoalService) Get(id string) (core.Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Find(id)
}

func (s *GoalService) Summary() core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.root)
}

// Series returns the cumulative savings chart of one goal.
func (s *GoalService) Series(id string) ([]core.SeriesPoint, error) {
	g, ok := s.Get(id)
	if !ok {
		return nil, core.ErrGoalNotFound
	}
	return core.BuildSeries(g.Transactions), nil
}

// CreateGoal validates the draft, bakes the optional picture and prepends
// the goal. A picture that cannot be baked is dropped with a warning.
func (s *GoalService) CreateGoal(ctx context.Context, draft core.GoalDraft, picture []byte, view imaging.View) (core.Goal, error) {
	if err := draft.Validate(); err != nil {
		return core.Goal{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	draft.Image = nil
	if len(picture) > 0 {
		draft.Image = s.bake(ctx, picture, view)
	}

	// the bake can be slow; drop the result if the caller gave up meanwhile
	if err := ctx.Err(); err != nil {
		return core.Goal{}, err
	}

	s.mu.Lock()
	g := s.ledger.CreateGoal(draft)
	err := s.commit(ctx, s.root.Add(g))
	s.mu.Unlock()
	if err != nil {
		return core.Goal{}, err
	}

	s.events.LogGoalCreated(ctx, g.ID, g.Title, g.TargetAmount.Cents, g.Image != nil)
	s.publish(ctx, amqp.NewGoalCreated(g))
	return g, nil
}

func (s *GoalService) bake(ctx context.Context, picture []byte, view imaging.View) []byte {
	if s.baker == nil {
		s.logger.WarnContext(ctx, "No image engine configured, storing goal without image")
		return nil
	}
	img, err := s.baker.Bake(picture, view)
	if err != nil {
		s.logger.WithComponent(log.ComponentImaging).WarnContext(ctx, "Failed to process goal image, storing goal without image",
			log.FieldOperation, log.OpBake, log.FieldError, err.Error())
		return nil
	}
	return img
}

// RecordTransaction saves or withdraws a positive amount on a goal.
// Withdrawals may not exceed the saved amount currently shown.
func (s *GoalService) RecordTransaction(ctx context.Context, id string, kind core.TransactionKind, amount core.Money, note string) (core.Goal, error) {
	s.mu.Lock()
	g, ok := s.root.Find(id)
	if !ok {
		s.mu.Unlock()
		return core.Goal{}, core.ErrGoalNotFound
	}
	if err := core.ValidateMovement(g, kind, amount, note); err != nil {
		s.mu.Unlock()
		return core.Goal{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	next, updated, _ := s.root.Record(s.ledger, id, kind.Signed(amount), note)
	err := s.commit(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return core.Goal{}, err
	}

	tx := updated.Transactions[len(updated.Transactions)-1]
	s.events.LogTransactionRecorded(ctx, updated.ID, tx.ID, tx.Amount.Cents, updated.SavedAmount.Cents)
	s.publish(ctx, amqp.NewTransactionRecorded(updated))
	return updated, nil
}

// DeleteGoal removes a goal. Deleting an unknown id does nothing.
func (s *GoalService) DeleteGoal(ctx context.Context, id string) error {
	s.mu.Lock()
	next, removed := s.root.Delete(id)
	if !removed {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Delete of unknown goal ignored", log.FieldGoalID, id)
		return nil
	}
	g, _ := s.root.Find(id)
	err := s.commit(ctx, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Goal deleted", log.FieldOperation, log.OpDelete, log.FieldGoalID, id)
	s.publish(ctx, amqp.NewGoalDeleted(g, s.ledger.Now()))
	return nil
}

// Advice asks the advisor about one goal. It only fails for unknown ids.
func (s *GoalService) Advice(ctx context.Context, id string) (string, error) {
	g, ok := s.Get(id)
	if !ok {
		return "", core.ErrGoalNotFound
	}
	if s.advisor == nil {
		return advice.MissingKeyMessage, nil
	}
	return s.advisor.Advise(ctx, advice.RequestFor(g, s.ledger.Now())), nil
}

// commit saves next and swaps it in. Callers hold s.mu. On error the root
// is left as it was.
func (s *GoalService) commit(ctx context.Context, next core.Collection) error {
	if s.store != nil {
		blob, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode goals: %w", err)
		}
		if err := s.store.Save(ctx, s.key, blob); err != nil {
			s.events.LogError(ctx, "Failed to save goals", err, log.ComponentStorage, log.OpPersist, log.LogFields{"goals": next.Len(), "error_type": log.ErrorTypeDatabase})
			return fmt.Errorf("save goals: %w", err)
		}
	}
	s.root = next
	s.observeCount()
	return nil
}

func (s *GoalService) observeCount() {
	if s.recorder != nil {
		s.recorder.SetGoalCount(s.root.Len())
	}
}

func (s *GoalService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.recorder != nil {
		s.recorder.ObserveLedgerEvent(string(event.Type))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		// the goal is saved locally; the mirror catches up or misses one row
		s.logger.WithComponent(log.ComponentAMQP).ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldEventType, string(event.Type),
			log.FieldGoalID, event.GoalID,
			log.FieldError, err.Error())
	}
}

// Close releases the publisher when it holds a connection.
func (s *GoalService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
