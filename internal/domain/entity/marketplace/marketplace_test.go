package marketplace

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarketplace(t *testing.T) {
	authority := uuid.New()
	now := time.Now()

	m, err := NewMarketplace(authority, 250, now)
	require.NoError(t, err)
	assert.Equal(t, authority, m.Authority)
	assert.Equal(t, uint16(250), m.FeeBasisPoints)
	assert.Zero(t, m.TotalListings)
	assert.Zero(t, m.TotalVolume)

	_, err = NewMarketplace(authority, 10001, now)
	assert.ErrorIs(t, err, ErrInvalidFeeBasisPoints)

	m, err = NewMarketplace(authority, 10000, now)
	require.NoError(t, err)
	assert.Equal(t, uint16(10000), m.FeeBasisPoints)
}

func TestFeeSplit(t *testing.T) {
	tests := []struct {
		name      string
		bps       uint16
		price     uint64
		wantFee   uint64
		wantOwner uint64
	}{
		{"typical rate", 250, 1_000_000, 25_000, 975_000},
		{"zero rate", 0, 1_000_000, 0, 1_000_000},
		{"full rate", 10000, 1_000_000, 1_000_000, 0},
		{"floor rounding", 250, 999, 24, 975},
		{"price below one fee unit", 1, 1, 0, 1},
		{"zero price", 250, 0, 0, 0},
		{"max price typical rate", 250, math.MaxUint64, 461168601842738790, math.MaxUint64 - 461168601842738790},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Marketplace{FeeBasisPoints: tt.bps}
			fee, owner, err := m.FeeSplit(tt.price)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.price, fee+owner, "fee and proceeds must reassemble the price")
		})
	}
}

func TestFeeSplitMaxPriceMaxRate(t *testing.T) {
	m := &Marketplace{FeeBasisPoints: 10000}
	fee, owner, err := m.FeeSplit(math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), fee)
	assert.Zero(t, owner)
}

func TestRecordListingCreated(t *testing.T) {
	m := &Marketplace{}
	require.NoError(t, m.RecordListingCreated())
	require.NoError(t, m.RecordListingCreated())
	assert.Equal(t, uint64(2), m.TotalListings)

	m.TotalListings = math.MaxUint64
	assert.ErrorIs(t, m.RecordListingCreated(), ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64), m.TotalListings)
}

func TestRecordSale(t *testing.T) {
	m := &Marketplace{}
	require.NoError(t, m.RecordSale(1500))
	require.NoError(t, m.RecordSale(500))
	assert.Equal(t, uint64(2000), m.TotalVolume)

	m.TotalVolume = math.MaxUint64 - 10
	assert.ErrorIs(t, m.RecordSale(11), ErrArithmeticOverflow)
	assert.Equal(t, uint64(math.MaxUint64-10), m.TotalVolume)
	require.NoError(t, m.RecordSale(10))
	assert.Equal(t, uint64(math.MaxUint64), m.TotalVolume)
}

func TestAuthorizeWithdrawal(t *testing.T) {
	authority := uuid.New()
	m := &Marketplace{Authority: authority}

	assert.NoError(t, m.AuthorizeWithdrawal(authority))
	assert.ErrorIs(t, m.AuthorizeWithdrawal(uuid.New()), ErrUnauthorized)
}
