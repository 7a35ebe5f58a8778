// Package wallet manages the list of saved tickets.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"eticket_parser/internal/metrics"
	"eticket_parser/internal/storage"
	"eticket_parser/internal/ticket"
)

// ErrNotFound is returned when no saved ticket has the requested ID.
var ErrNotFound = errors.New("ticket not found")

// Publisher announces newly saved tickets.
type Publisher interface {
	Publish(ctx context.Context, tickets []*ticket.Ticket) error
}

// Wallet is the saved ticket list. Newest tickets are held first; List
// returns them in journey order. Every change is written through to the store.
type Wallet struct {
	mu        sync.RWMutex
	store     storage.Store
	publisher Publisher
	logger    *slog.Logger
	tickets   []*ticket.Ticket
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithPublisher announces added tickets through p.
func WithPublisher(p Publisher) Option {
	return func(w *Wallet) { w.publisher = p }
}

// New creates an empty wallet backed by store. Call Load to read saved tickets.
func New(store storage.Store, logger *slog.Logger, opts ...Option) *Wallet {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Wallet{
		store:   store,
		logger:  logger,
		tickets: []*ticket.Ticket{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Load replaces the in-memory list with the stored one. A corrupt document is
// logged and the wallet starts empty; other store errors are returned.
func (w *Wallet) Load(ctx context.Context) error {
	tickets, err := w.store.Load(ctx)
	if errors.Is(err, storage.ErrCorrupt) {
		w.logger.Error("stored tickets are unreadable, starting empty", "error", err)
		tickets = []*ticket.Ticket{}
	} else if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	w.mu.Lock()
	w.tickets = tickets
	w.mu.Unlock()

	metrics.WalletTickets.Set(float64(len(tickets)))
	w.logger.Debug("wallet loaded", "tickets", len(tickets))
	return nil
}

// Add saves tickets ahead of everything already held, keeping their given order.
func (w *Wallet) Add(ctx context.Context, tickets ...*ticket.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	w.mu.Lock()
	next := make([]*ticket.Ticket, 0, len(tickets)+len(w.tickets))
	next = append(next, tickets...)
	next = append(next, w.tickets...)
	if err := w.store.Save(ctx, next); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("save wallet: %w", err)
	}
	w.tickets = next
	w.mu.Unlock()

	metrics.WalletTickets.Set(float64(len(next)))
	w.logger.Info("tickets added", "count", len(tickets), "pnr", tickets[0].PNR)

	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, tickets); err != nil {
			w.logger.Warn("failed to publish added tickets", "error", err)
		}
	}
	return nil
}

// Delete removes the ticket with the given ID.
func (w *Wallet) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make([]*ticket.Ticket, 0, len(w.tickets))
	for _, t := range w.tickets {
		if t.ID != id {
			next = append(next, t)
		}
	}
	if len(next) == len(w.tickets) {
		return ErrNotFound
	}

	if err := w.store.Save(ctx, next); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	w.tickets = next

	metrics.WalletTickets.Set(float64(len(next)))
	w.logger.Info("ticket deleted", "id", id)
	return nil
}

// Get returns a copy of the ticket with the given ID.
func (w *Wallet) Get(id string) (*ticket.Ticket, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, t := range w.tickets {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// List returns copies of all tickets ordered by date of journey, earliest first.
// Tickets whose date cannot be read come last, in saved order.
func (w *Wallet) List() []*ticket.Ticket {
	w.mu.RLock()
	out := make([]*ticket.Ticket, len(w.tickets))
	for i, t := range w.tickets {
		c := *t
		out[i] = &c
	}
	w.mu.RUnlock()

	ticket.SortByJourney(out)
	return out
}

// Len returns the number of saved tickets.
func (w *Wallet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.tickets)
}
