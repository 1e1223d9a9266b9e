package marketplace

import (
	"time"

	"github.com/google/uuid"
)

// DataListing is a single data-asset sale offer. It is born active and ends
// in exactly one of two terminal states: sold or cancelled. The listing id is
// caller-supplied and doubles as the record key.
type DataListing struct {
	ID          uint64     `json:"id"`
	Owner       uuid.UUID  `json:"owner"`
	Price       uint64     `json:"price"`
	DataType    DataType   `json:"data_type"`
	CustomType  string     `json:"custom_type,omitempty"`
	Description string     `json:"description"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	Buyer       *uuid.UUID `json:"buyer,omitempty"`
}

// NewDataListing validates the inputs and returns an active listing.
func NewDataListing(id uint64, owner uuid.UUID, price uint64, dataType, customType, description string, now time.Time) (*DataListing, error) {
	dt, err := NewDataType(dataType, customType)
	if err != nil {
		return nil, err
	}
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	if dt != DataTypeCustom {
		customType = ""
	}
	return &DataListing{
		ID:          id,
		Owner:       owner,
		Price:       price,
		DataType:    dt,
		CustomType:  customType,
		Description: description,
		IsActive:    true,
		CreatedAt:   now.UTC(),
	}, nil
}

// Reprice changes the asking price. Only the owner may reprice and only while
// the listing is active; the active check comes first so a terminal listing
// reports ErrListingNotActive regardless of the caller.
func (l *DataListing) Reprice(newPrice uint64, caller uuid.UUID) error {
	if !l.IsActive {
		return ErrListingNotActive
	}
	if caller != l.Owner {
		return ErrUnauthorized
	}
	if newPrice == 0 {
		return ErrInvalidPrice
	}
	l.Price = newPrice
	return nil
}

// Cancel moves an active listing to the cancelled terminal state.
func (l *DataListing) Cancel(caller uuid.UUID, now time.Time) error {
	if !l.IsActive {
		return ErrListingNotActive
	}
	if caller != l.Owner {
		return ErrUnauthorized
	}
	l.IsActive = false
	at := now.UTC()
	l.CancelledAt = &at
	return nil
}

// Purchase moves an active listing to the sold terminal state and returns the
// gross price the buyer owes. The caller asserts the listing id it intends to
// buy; a mismatch against the record is rejected so a mis-addressed record can
// never be sold. The caller is responsible for not persisting the mutation if
// the subsequent value transfer fails.
func (l *DataListing) Purchase(expectedID uint64, buyer uuid.UUID, now time.Time) (uint64, error) {
	if !l.IsActive {
		return 0, ErrListingNotActive
	}
	if l.ID != expectedID {
		return 0, ErrInvalidListingID
	}
	l.IsActive = false
	l.Buyer = &buyer
	at := now.UTC()
	l.SoldAt = &at
	return l.Price, nil
}
