package interfaces

import (
	"context"

	marketplace "main/internal/domain/entity/marketplace"
)

// MarketplaceStore persists the singleton marketplace record and the listing
// records. The marketplace lives at a fixed key; listings are keyed by their
// caller-supplied id. Create methods follow create-if-absent semantics:
// CreateMarketplace fails with marketplace.ErrAlreadyInitialized and
// CreateListing with marketplace.ErrDuplicateListing when the key exists.
// Get and Update fail with marketplace.ErrNotFound for missing records.
type MarketplaceStore interface {
	CreateMarketplace(ctx context.Context, m *marketplace.Marketplace) error
	GetMarketplace(ctx context.Context) (*marketplace.Marketplace, error)
	UpdateMarketplace(ctx context.Context, m *marketplace.Marketplace) error

	CreateListing(ctx context.Context, l *marketplace.DataListing) error
	GetListing(ctx context.Context, id uint64) (*marketplace.DataListing, error)
	UpdateListing(ctx context.Context, l *marketplace.DataListing) error
}

// Tx is the view an operation works against inside a unit of work: record
// reads lock the touched rows, and every write, record updates and value
// transfers alike, commits or rolls back as one unit.
type Tx interface {
	MarketplaceStore
	AccountStore
	ValueTransfer
}

// UnitOfWork is the storage port the application services depend on. Direct
// method calls execute standalone; Atomic brackets fn in a transaction and
// discards every write when fn returns an error.
type UnitOfWork interface {
	Tx
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}

// EventPublisher broadcasts committed operations to downstream consumers.
// Publishing is best-effort and never influences the operation outcome.
type EventPublisher interface {
	Publish(ctx context.Context, event marketplace.Event) error
}
