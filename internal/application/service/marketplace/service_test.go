package marketplace

import (
	"context"
	"testing"
	"time"

	ledger "main/internal/domain/entity/ledger"
	marketplace "main/internal/domain/entity/marketplace"
	"main/internal/infrastructure/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []marketplace.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event marketplace.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []marketplace.EventKind {
	kinds := make([]marketplace.EventKind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fixture struct {
	service   *Service
	store     *memory.Store
	publisher *recordingPublisher
	authority uuid.UUID
}

func newFixture(t *testing.T, feeBasisPoints uint16) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		publisher: &recordingPublisher{},
		authority: uuid.New(),
	}
	f.service = NewService(f.store, f.publisher)
	_, err := f.service.InitializeMarketplace(context.Background(), f.authority, feeBasisPoints)
	require.NoError(t, err)
	return f
}

func (f *fixture) openAccount(t *testing.T, id uuid.UUID, balance uint64) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(context.Background(), ledger.NewAccount(id, balance, time.Now())))
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) uint64 {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) createListing(t *testing.T, owner uuid.UUID, id, price uint64) *marketplace.DataListing {
	t.Helper()
	l, err := f.service.CreateDataListing(context.Background(), owner, id, price, "health_data", "", "resting heart rate, one year")
	require.NoError(t, err)
	return l
}

func TestInitializeMarketplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.authority, m.Authority)
	assert.Equal(t, uint16(250), m.FeeBasisPoints)

	// The custodial fee account exists from the start.
	assert.Zero(t, f.balance(t, marketplace.AccountID))

	_, err = f.service.InitializeMarketplace(ctx, uuid.New(), 100)
	assert.ErrorIs(t, err, marketplace.ErrAlreadyInitialized)

	_, err = f.service.InitializeMarketplace(ctx, uuid.New(), 10001)
	assert.ErrorIs(t, err, marketplace.ErrInvalidFeeBasisPoints)

	assert.Equal(t, []marketplace.EventKind{marketplace.EventMarketplaceInitialized}, f.publisher.kinds())
}

func TestCreateDataListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()

	for id := uint64(1); id <= 3; id++ {
		f.createListing(t, owner, id, 1000*id)
	}

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.TotalListings)

	_, err = f.service.CreateDataListing(ctx, uuid.New(), 2, 500, "app_usage", "", "")
	assert.ErrorIs(t, err, marketplace.ErrDuplicateListing)

	m, err = f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.TotalListings, "rejected listing must not bump the counter")
}

func TestCreateDataListingWithoutMarketplace(t *testing.T) {
	service := NewService(memory.NewStore(), nil)
	_, err := service.CreateDataListing(context.Background(), uuid.New(), 1, 1000, "app_usage", "", "")
	assert.ErrorIs(t, err, marketplace.ErrNotFound)
}

func TestPurchaseData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	buyer := uuid.New()
	f.openAccount(t, owner, 0)
	f.openAccount(t, buyer, 1_000_000)
	f.createListing(t, owner, 1, 100_000)

	sold, err := f.service.PurchaseData(ctx, buyer, 1)
	require.NoError(t, err)
	assert.False(t, sold.IsActive)
	require.NotNil(t, sold.Buyer)
	assert.Equal(t, buyer, *sold.Buyer)
	require.NotNil(t, sold.SoldAt)

	// 250 bps of 100000 is 2500; the remainder goes to the owner.
	assert.Equal(t, uint64(900_000), f.balance(t, buyer))
	assert.Equal(t, uint64(97_500), f.balance(t, owner))
	assert.Equal(t, uint64(2_500), f.balance(t, marketplace.AccountID))

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), m.TotalVolume, "volume counts the gross price")

	assert.Equal(t, []marketplace.EventKind{
		marketplace.EventMarketplaceInitialized,
		marketplace.EventListingCreated,
		marketplace.EventListingSold,
	}, f.publisher.kinds())
}

func TestPurchaseDataTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	first := uuid.New()
	second := uuid.New()
	f.openAccount(t, owner, 0)
	f.openAccount(t, first, 200_000)
	f.openAccount(t, second, 200_000)
	f.createListing(t, owner, 1, 100_000)

	_, err := f.service.PurchaseData(ctx, first, 1)
	require.NoError(t, err)

	_, err = f.service.PurchaseData(ctx, second, 1)
	assert.ErrorIs(t, err, marketplace.ErrListingNotActive)
	assert.Equal(t, uint64(200_000), f.balance(t, second), "losing buyer pays nothing")

	l, err := f.service.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, *l.Buyer)

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), m.TotalVolume, "failed purchase leaves the volume untouched")
}

func TestPurchaseDataInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	buyer := uuid.New()
	f.openAccount(t, owner, 0)
	f.openAccount(t, buyer, 50_000)
	f.createListing(t, owner, 1, 100_000)

	_, err := f.service.PurchaseData(ctx, buyer, 1)
	assert.ErrorIs(t, err, marketplace.ErrTransferFailed)

	// Nothing committed: the listing is still for sale and no value moved.
	l, err := f.service.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.True(t, l.IsActive)
	assert.Nil(t, l.Buyer)
	assert.Equal(t, uint64(50_000), f.balance(t, buyer))
	assert.Equal(t, uint64(0), f.balance(t, owner))

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Zero(t, m.TotalVolume)
}

func TestPurchaseDataZeroFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	owner := uuid.New()
	buyer := uuid.New()
	f.openAccount(t, owner, 0)
	f.openAccount(t, buyer, 100_000)
	f.createListing(t, owner, 1, 100_000)

	_, err := f.service.PurchaseData(ctx, buyer, 1)
	require.NoError(t, err)

	assert.Zero(t, f.balance(t, buyer))
	assert.Equal(t, uint64(100_000), f.balance(t, owner))
	assert.Zero(t, f.balance(t, marketplace.AccountID))
}

func TestPurchaseOwnListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	f.openAccount(t, owner, 100_000)
	f.createListing(t, owner, 1, 100_000)

	// Nothing forbids buying back your own listing; the owner pays only the fee.
	_, err := f.service.PurchaseData(ctx, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(97_500), f.balance(t, owner))
	assert.Equal(t, uint64(2_500), f.balance(t, marketplace.AccountID))
}

func TestUpdateListingPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	f.createListing(t, owner, 1, 1000)

	updated, err := f.service.UpdateListingPrice(ctx, owner, 1, 2500)
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), updated.Price)

	_, err = f.service.UpdateListingPrice(ctx, uuid.New(), 1, 100)
	assert.ErrorIs(t, err, marketplace.ErrUnauthorized)

	_, err = f.service.UpdateListingPrice(ctx, owner, 99, 100)
	assert.ErrorIs(t, err, marketplace.ErrNotFound)

	_, err = f.service.CancelListing(ctx, owner, 1)
	require.NoError(t, err)
	_, err = f.service.UpdateListingPrice(ctx, owner, 1, 100)
	assert.ErrorIs(t, err, marketplace.ErrListingNotActive)
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 250)
	owner := uuid.New()
	f.createListing(t, owner, 1, 1000)

	cancelled, err := f.service.CancelListing(ctx, owner, 1)
	require.NoError(t, err)
	assert.False(t, cancelled.IsActive)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.service.CancelListing(ctx, owner, 1)
	assert.ErrorIs(t, err, marketplace.ErrListingNotActive)

	m, err := f.service.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.TotalListings, "cancellation does not rewind the counter")
}

func TestWithdrawFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	owner := uuid.New()
	buyer := uuid.New()
	f.openAccount(t, owner, 0)
	f.openAccount(t, buyer, 100_000)
	f.openAccount(t, f.authority, 0)
	f.createListing(t, owner, 1, 100_000)

	_, err := f.service.PurchaseData(ctx, buyer, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), f.balance(t, marketplace.AccountID))

	t.Run("non-authority rejected", func(t *testing.T) {
		err := f.service.WithdrawFees(ctx, uuid.New(), 1)
		assert.ErrorIs(t, err, marketplace.ErrUnauthorized)
		assert.Equal(t, uint64(10_000), f.balance(t, marketplace.AccountID))
	})

	t.Run("overdraw rejected", func(t *testing.T) {
		err := f.service.WithdrawFees(ctx, f.authority, 10_001)
		assert.ErrorIs(t, err, marketplace.ErrTransferFailed)
	})

	t.Run("authority withdraws", func(t *testing.T) {
		require.NoError(t, f.service.WithdrawFees(ctx, f.authority, 4_000))
		assert.Equal(t, uint64(6_000), f.balance(t, marketplace.AccountID))
		assert.Equal(t, uint64(4_000), f.balance(t, f.authority))
	})
}
