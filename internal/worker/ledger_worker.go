package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"dreamsaver/internal/amqp"
	"dreamsaver/internal/core"
	"dreamsaver/internal/log"
	"dreamsaver/internal/sheets"
)

// Consumer delivers ledger events until its context ends. The AMQP client
// implements it.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// Stats counts handled events since start.
type Stats struct {
	Mirrored int64
	Failed   int64
}

// LedgerWorker mirrors ledger events into a spreadsheet, one row per event.
type LedgerWorker struct {
	consumer Consumer
	sheets   sheets.LedgerWriter
	logger   *log.Logger

	mirrored atomic.Int64
	failed   atomic.Int64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewLedgerWorker(consumer Consumer, writer sheets.LedgerWriter, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		consumer: consumer,
		sheets:   writer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent appends one row for e. Returning an error makes the consumer
// requeue the message.
func (w *LedgerWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"event_id", e.ID,
		log.FieldEventType, string(e.Type),
		log.FieldGoalID, e.GoalID)

	ref, err := w.sheets.AppendRow(ctx, RowFromEvent(e))
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("append to sheets: %w", err)
	}
	w.mirrored.Add(1)

	w.logger.InfoContext(ctx, "Successfully mirrored ledger event",
		"event_id", e.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmountCents, e.AmountCents)
	return nil
}

// RowFromEvent flattens an event into the sheet layout.
func RowFromEvent(e *amqp.LedgerEvent) sheets.LedgerRow {
	return sheets.LedgerRow{
		OccurredAt:    e.OccurredAt,
		Event:         string(e.Type),
		GoalID:        e.GoalID,
		GoalTitle:     e.GoalTitle,
		TransactionID: e.TransactionID,
		Amount:        core.Money{Cents: e.AmountCents},
		Saved:         core.Money{Cents: e.SavedCents},
		Target:        core.Money{Cents: e.TargetCents},
		TargetDate:    e.TargetDate,
		Note:          e.Note,
	}
}

// Start begins consuming in the background. Returns an error if already running.
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("ledger worker is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil

	go w.run(ctx, w.doneCh)

	w.logger.InfoContext(ctx, "Ledger worker started")
	return nil
}

func (w *LedgerWorker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := w.consumer.Consume(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Ledger worker stopped with error", log.FieldError, err.Error())
	}
	w.mu.Lock()
	w.err = err
	w.running = false
	w.mu.Unlock()
}

// Done is closed once the consumer loop has returned.
func (w *LedgerWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err reports why the consumer loop ended, nil for a requested stop.
func (w *LedgerWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stop gracefully stops the worker and waits for the current event.
func (w *LedgerWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Ledger worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Ledger worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently consuming
func (w *LedgerWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *LedgerWorker) Stats() Stats {
	return Stats{Mirrored: w.mirrored.Load(), Failed: w.failed.Load()}
}
