package events

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"tgcasino/models"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeWagerSettled       EventType = "wager_settled"
	EventTypeBankUpdated        EventType = "bank_updated"
	EventTypeMinesRoundFinished EventType = "mines_round_finished"
	EventTypeSlotRoundRefunded  EventType = "slot_round_refunded"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64
	OldBalance      decimal.Decimal
	NewBalance      decimal.Decimal
	TransactionType models.TransactionType
	ChangeAmount    decimal.Decimal
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// WagerSettledEvent represents a wager whose financial outcome was committed
type WagerSettledEvent struct {
	UserID     int64
	BankID     int64
	Game       models.GameCode
	Amount     decimal.Decimal
	Multiplier decimal.Decimal
	Won        bool
	WinAmount  decimal.Decimal
}

func (e WagerSettledEvent) Type() EventType {
	return EventTypeWagerSettled
}

// BankUpdatedEvent carries the bank state after a ledger mutation
type BankUpdatedEvent struct {
	BankID       int64
	BankName     string
	Capital      decimal.Decimal
	TotalWagered decimal.Decimal
	TotalWon     decimal.Decimal
	RTP          decimal.Decimal
}

func (e BankUpdatedEvent) Type() EventType {
	return EventTypeBankUpdated
}

// MinesRoundFinishedEvent represents a mines round reaching won or lost
type MinesRoundFinishedEvent struct {
	RoundID int64
	UserID  int64
	Status  models.MinesStatus
	Step    int
}

func (e MinesRoundFinishedEvent) Type() EventType {
	return EventTypeMinesRoundFinished
}

// SlotRoundRefundedEvent represents a reservation returned to the player
type SlotRoundRefundedEvent struct {
	RoundID string
	UserID  int64
	Amount  decimal.Decimal
	Reason  string
}

func (e SlotRoundRefundedEvent) Type() EventType {
	return EventTypeSlotRoundRefunded
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Handlers run asynchronously so a slow subscriber never holds up a settlement
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits. A rollback discards them.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional bus")

	// the request context may be cancelled as soon as the handler returns
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
