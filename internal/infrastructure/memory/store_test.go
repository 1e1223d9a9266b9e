package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	ledger "main/internal/domain/entity/ledger"
	domain "main/internal/domain/entity/marketplace"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketplaceSingleton(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.GetMarketplace(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := domain.NewMarketplace(uuid.New(), 250, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CreateMarketplace(ctx, m))

	assert.ErrorIs(t, s.CreateMarketplace(ctx, m), domain.ErrAlreadyInitialized)

	got, err := s.GetMarketplace(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Authority, got.Authority)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	l, err := domain.NewDataListing(1, uuid.New(), 1000, "app_usage", "", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CreateListing(ctx, l))

	read, err := s.GetListing(ctx, 1)
	require.NoError(t, err)
	read.Price = 9999

	again, err := s.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), again.Price, "mutating a read copy must not leak into the store")
}

func TestDuplicateListing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	l, err := domain.NewDataListing(1, uuid.New(), 1000, "app_usage", "", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CreateListing(ctx, l))
	assert.ErrorIs(t, s.CreateListing(ctx, l), domain.ErrDuplicateListing)
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	from := uuid.New()
	to := uuid.New()
	require.NoError(t, s.CreateAccount(ctx, ledger.NewAccount(from, 100, now)))
	require.NoError(t, s.CreateAccount(ctx, ledger.NewAccount(to, 0, now)))

	auth := ledger.SignerAuthorization(from)

	t.Run("moves value", func(t *testing.T) {
		require.NoError(t, s.Transfer(ctx, from, to, 60, auth))
		src, err := s.GetAccount(ctx, from)
		require.NoError(t, err)
		dst, err := s.GetAccount(ctx, to)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), src.Balance)
		assert.Equal(t, uint64(60), dst.Balance)
	})

	t.Run("overdraw rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Transfer(ctx, from, to, 41, auth), ledger.ErrInsufficientFunds)
	})

	t.Run("authorization must cover source", func(t *testing.T) {
		assert.ErrorIs(t, s.Transfer(ctx, to, from, 10, auth), ledger.ErrUnauthorized)
	})

	t.Run("zero amount is a no-op", func(t *testing.T) {
		require.NoError(t, s.Transfer(ctx, from, uuid.New(), 0, auth))
	})

	t.Run("missing destination", func(t *testing.T) {
		assert.ErrorIs(t, s.Transfer(ctx, from, uuid.New(), 10, auth), ledger.ErrAccountNotFound)
	})
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	acct := uuid.New()
	require.NoError(t, s.CreateAccount(ctx, ledger.NewAccount(acct, 100, now)))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		l, err := domain.NewDataListing(1, uuid.New(), 1000, "app_usage", "", "", now)
		if err != nil {
			return err
		}
		if err := tx.CreateListing(ctx, l); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, acct, acct, 50, ledger.SignerAuthorization(acct)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetListing(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	a, err := s.GetAccount(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), a.Balance)
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()

	err := s.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		l, err := domain.NewDataListing(1, uuid.New(), 1000, "app_usage", "", "", now)
		if err != nil {
			return err
		}
		return tx.CreateListing(ctx, l)
	})
	require.NoError(t, err)

	l, err := s.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.True(t, l.IsActive)
}
