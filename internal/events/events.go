package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event types emitted after a write has committed.
const (
	PurchaseOrderStatusChanged = "purchase_order.status_changed"
	StockMovementCreated       = "stock_movement.created"
	StockMovementCorrected     = "stock_movement.corrected"
	StockMovementDeleted       = "stock_movement.deleted"
	InventorySnapshotSaved     = "inventory_snapshot.saved"
	StocktakeRecorded          = "stocktake.recorded"
)

// Event is a domain fact. AggregateID is used as the Kafka message key so
// every event of one order or product lands on the same partition.
type Event struct {
	Type        string      `json:"type"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

// New stamps an event with the current UTC time.
func New(eventType, aggregateID string, data interface{}) Event {
	return Event{
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	}
}

// Publisher delivers events to downstream consumers. Publishing happens
// after commit, so a failure never rolls back the write that caused it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of one type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
