// ABOUTME: Store interface and data types for mediline persistence
// ABOUTME: Defines the Exchange record and the Store interface for the gateway ledger

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Exchange represents one completed chat round trip: the user's message,
// the agent that answered, and the reply. Failed exchanges are recorded
// too, with the error text in Error and an empty Response.
type Exchange struct {
	ID                 string
	Agent              string
	Message            string
	Response           string
	Error              string
	HadImage           bool
	RequiresValidation bool
	CreatedAt          time.Time
}

// Store defines the persistence interface for the exchange ledger
type Store interface {
	// SaveExchange records a completed chat round trip
	SaveExchange(ctx context.Context, ex *Exchange) error

	// GetExchange retrieves an exchange by ID, or ErrNotFound
	GetExchange(ctx context.Context, id string) (*Exchange, error)

	// RecentExchanges returns the most recent exchanges, newest first,
	// up to limit
	RecentExchanges(ctx context.Context, limit int) ([]*Exchange, error)

	// CountExchanges returns the total number of recorded exchanges
	CountExchanges(ctx context.Context) (int, error)

	// Close releases any resources held by the store
	Close() error
}
