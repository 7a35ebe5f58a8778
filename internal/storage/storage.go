// Package storage persists the saved ticket list.
//
// Every backend holds the whole list as one JSON document under the fixed key
// "tickets", so documents move freely between backends.
package storage

import (
	"context"

	"eticket_parser/internal/ticket"
)

// Key is the identifier the ticket list is stored under.
const Key = "tickets"

// Store loads and saves the full ticket list.
// Load returns an empty list when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]*ticket.Ticket, error)
	Save(ctx context.Context, tickets []*ticket.Ticket) error
}

// Backend is a Store holding an open connection.
type Backend interface {
	Store
	Close() error
}
