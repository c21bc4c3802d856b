package store

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateOrderID is returned when appending an order ID already in the ledger.
	ErrDuplicateOrderID = errors.New("duplicate order id")

	// ErrNotFound is returned when an order ID is not in the ledger.
	ErrNotFound = errors.New("order not found")
)

// Ledger is the durable record of every submitted order.
// Every successful Append or UpdateStatus is persisted before it returns.
type Ledger interface {
	// Append adds a new record. It fails with ErrDuplicateOrderID if the ID exists.
	Append(ctx context.Context, rec OrderRecord) error

	// UpdateStatus sets the status (and post-submission fields) of an order.
	// It fails with ErrNotFound if the ID is absent.
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus, fields StatusFields) error

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, orderID string) (*OrderRecord, error)

	// ListByBatch returns the records sharing batchID, in insertion order.
	ListByBatch(ctx context.Context, batchID string) ([]OrderRecord, error)

	// List returns every record, in insertion order.
	List(ctx context.Context) ([]OrderRecord, error)

	// Close releases the ledger's resources.
	Close() error
}
