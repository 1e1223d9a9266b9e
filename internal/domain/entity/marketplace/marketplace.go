package marketplace

import (
	"math"
	"math/bits"
	"time"

	"github.com/google/uuid"
)

// feeDenominator is the basis-point scale: a fee of 10000 bps is 100%.
const feeDenominator = 10000

// AccountID is the marketplace's own ledger account. Fees collected on sales
// accumulate here and only the configured authority may withdraw them. The id
// is derived from a fixed name so every deployment addresses the same account.
var AccountID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("datasov:marketplace"))

// Marketplace is the singleton aggregate holding the global fee configuration
// and running totals. There is exactly one per deployment.
type Marketplace struct {
	Authority      uuid.UUID `json:"authority"`
	FeeBasisPoints uint16    `json:"fee_basis_points"`
	TotalListings  uint64    `json:"total_listings"`
	TotalVolume    uint64    `json:"total_volume"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMarketplace builds the singleton record. Counters start at zero and the
// authority is immutable afterwards.
func NewMarketplace(authority uuid.UUID, feeBasisPoints uint16, now time.Time) (*Marketplace, error) {
	if feeBasisPoints > feeDenominator {
		return nil, ErrInvalidFeeBasisPoints
	}
	return &Marketplace{
		Authority:      authority,
		FeeBasisPoints: feeBasisPoints,
		CreatedAt:      now.UTC(),
	}, nil
}

// FeeSplit divides a gross purchase price into the marketplace fee and the
// owner's proceeds. The fee is floor(price * bps / 10000) computed in a
// 128-bit intermediate so the product cannot wrap; the rounding remainder
// stays with the owner.
func (m *Marketplace) FeeSplit(price uint64) (feeAmount, ownerAmount uint64, err error) {
	hi, lo := bits.Mul64(price, uint64(m.FeeBasisPoints))
	if hi >= feeDenominator {
		// Unreachable for a 16-bit rate, but the down-cast must be guarded.
		return 0, 0, ErrArithmeticOverflow
	}
	feeAmount, _ = bits.Div64(hi, lo, feeDenominator)
	return feeAmount, price - feeAmount, nil
}

// RecordListingCreated bumps the monotone listing counter.
func (m *Marketplace) RecordListingCreated() error {
	if m.TotalListings == math.MaxUint64 {
		return ErrArithmeticOverflow
	}
	m.TotalListings++
	return nil
}

// RecordSale accumulates the gross purchase amount into the volume counter.
func (m *Marketplace) RecordSale(price uint64) error {
	if price > math.MaxUint64-m.TotalVolume {
		return ErrArithmeticOverflow
	}
	m.TotalVolume += price
	return nil
}

// AuthorizeWithdrawal checks that the caller is the configured authority.
func (m *Marketplace) AuthorizeWithdrawal(caller uuid.UUID) error {
	if caller != m.Authority {
		return ErrUnauthorized
	}
	return nil
}
