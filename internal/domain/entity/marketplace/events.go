package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a committed marketplace operation.
type EventKind string

const (
	EventMarketplaceInitialized EventKind = "marketplace.initialized"
	EventListingCreated         EventKind = "listing.created"
	EventListingSold            EventKind = "listing.sold"
	EventListingRepriced        EventKind = "listing.repriced"
	EventListingCancelled       EventKind = "listing.cancelled"
	EventFeesWithdrawn          EventKind = "fees.withdrawn"
)

// Event is emitted after an operation commits. It is informational only and
// never part of the operation's transaction.
type Event struct {
	Kind        EventKind    `json:"kind"`
	Actor       uuid.UUID    `json:"actor"`
	Listing     *DataListing `json:"listing,omitempty"`
	Marketplace *Marketplace `json:"marketplace,omitempty"`
	Amount      uint64       `json:"amount,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
