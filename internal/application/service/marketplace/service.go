package marketplace

import (
	"context"
	"fmt"
	"time"

	ledger "main/internal/domain/entity/ledger"
	marketplace "main/internal/domain/entity/marketplace"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

// Service orchestrates the marketplace operations. Every mutating operation
// runs inside a single unit of work: record reads lock the touched rows,
// state checks and fee arithmetic happen on the locked snapshot, and the
// value transfers commit together with the record writes or not at all.
type Service struct {
	uow    interfaces.UnitOfWork
	events interfaces.EventPublisher
}

// NewService wires the storage port and an optional event publisher.
func NewService(uow interfaces.UnitOfWork, events interfaces.EventPublisher) *Service {
	return &Service{uow: uow, events: events}
}

// InitializeMarketplace creates the singleton marketplace record and its
// custodial fee account. Fails with marketplace.ErrAlreadyInitialized when
// the record exists.
func (s *Service) InitializeMarketplace(ctx context.Context, authority uuid.UUID, feeBasisPoints uint16) (*marketplace.Marketplace, error) {
	now := time.Now()
	m, err := marketplace.NewMarketplace(authority, feeBasisPoints, now)
	if err != nil {
		return nil, err
	}
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		if err := tx.CreateMarketplace(ctx, m); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, ledger.NewAccount(marketplace.AccountID, 0, now))
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, marketplace.Event{
		Kind:        marketplace.EventMarketplaceInitialized,
		Actor:       authority,
		Marketplace: m,
		OccurredAt:  now.UTC(),
	})
	return m, nil
}

// CreateDataListing creates an active listing and bumps the marketplace
// listing counter; both writes commit together. A reused listing id fails
// with marketplace.ErrDuplicateListing and leaves the counter untouched.
func (s *Service) CreateDataListing(ctx context.Context, owner uuid.UUID, id uint64, price uint64, dataType, customType, description string) (*marketplace.DataListing, error) {
	now := time.Now()
	l, err := marketplace.NewDataListing(id, owner, price, dataType, customType, description, now)
	if err != nil {
		return nil, err
	}
	err = s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		m, err := tx.GetMarketplace(ctx)
		if err != nil {
			return err
		}
		if err := tx.CreateListing(ctx, l); err != nil {
			return err
		}
		if err := m.RecordListingCreated(); err != nil {
			return err
		}
		return tx.UpdateMarketplace(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, marketplace.Event{
		Kind:       marketplace.EventListingCreated,
		Actor:      owner,
		Listing:    l,
		OccurredAt: now.UTC(),
	})
	return l, nil
}

// PurchaseData sells an active listing to the buyer. The owner's proceeds
// move first, then the marketplace fee (skipped entirely when zero), then
// the volume counter and both records are written. A concurrent purchase of
// the same listing serializes on the listing row; the loser observes the
// sold record and fails with marketplace.ErrListingNotActive.
func (s *Service) PurchaseData(ctx context.Context, buyer uuid.UUID, listingID uint64) (*marketplace.DataListing, error) {
	now := time.Now()
	var sold *marketplace.DataListing
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		m, err := tx.GetMarketplace(ctx)
		if err != nil {
			return err
		}
		price, err := l.Purchase(listingID, buyer, now)
		if err != nil {
			return err
		}
		feeAmount, ownerAmount, err := m.FeeSplit(price)
		if err != nil {
			return err
		}
		auth := ledger.SignerAuthorization(buyer)
		if err := tx.Transfer(ctx, buyer, l.Owner, ownerAmount, auth); err != nil {
			return fmt.Errorf("%w: %v", marketplace.ErrTransferFailed, err)
		}
		if feeAmount > 0 {
			if err := tx.Transfer(ctx, buyer, marketplace.AccountID, feeAmount, auth); err != nil {
				return fmt.Errorf("%w: %v", marketplace.ErrTransferFailed, err)
			}
		}
		if err := m.RecordSale(price); err != nil {
			return err
		}
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		if err := tx.UpdateMarketplace(ctx, m); err != nil {
			return err
		}
		sold = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, marketplace.Event{
		Kind:       marketplace.EventListingSold,
		Actor:      buyer,
		Listing:    sold,
		Amount:     sold.Price,
		OccurredAt: now.UTC(),
	})
	return sold, nil
}

// UpdateListingPrice changes the asking price of an active listing.
func (s *Service) UpdateListingPrice(ctx context.Context, owner uuid.UUID, listingID uint64, newPrice uint64) (*marketplace.DataListing, error) {
	var updated *marketplace.DataListing
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := l.Reprice(newPrice, owner); err != nil {
			return err
		}
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, marketplace.Event{
		Kind:       marketplace.EventListingRepriced,
		Actor:      owner,
		Listing:    updated,
		Amount:     newPrice,
		OccurredAt: time.Now().UTC(),
	})
	return updated, nil
}

// CancelListing moves an active listing to the cancelled terminal state.
func (s *Service) CancelListing(ctx context.Context, owner uuid.UUID, listingID uint64) (*marketplace.DataListing, error) {
	now := time.Now()
	var cancelled *marketplace.DataListing
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if err := l.Cancel(owner, now); err != nil {
			return err
		}
		if err := tx.UpdateListing(ctx, l); err != nil {
			return err
		}
		cancelled = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, marketplace.Event{
		Kind:       marketplace.EventListingCancelled,
		Actor:      owner,
		Listing:    cancelled,
		OccurredAt: now.UTC(),
	})
	return cancelled, nil
}

// WithdrawFees moves collected fees from the marketplace's custodial account
// to the authority. The transfer is authorized by the marketplace's own
// delegated capability, not by the caller's identity; the caller only has to
// match the configured authority.
func (s *Service) WithdrawFees(ctx context.Context, caller uuid.UUID, amount uint64) error {
	err := s.uow.Atomic(ctx, func(ctx context.Context, tx interfaces.Tx) error {
		m, err := tx.GetMarketplace(ctx)
		if err != nil {
			return err
		}
		if err := m.AuthorizeWithdrawal(caller); err != nil {
			return err
		}
		auth := ledger.CustodialAuthorization(marketplace.AccountID)
		if err := tx.Transfer(ctx, marketplace.AccountID, m.Authority, amount, auth); err != nil {
			return fmt.Errorf("%w: %v", marketplace.ErrTransferFailed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, marketplace.Event{
		Kind:       marketplace.EventFeesWithdrawn,
		Actor:      caller,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// GetListing reads a listing record.
func (s *Service) GetListing(ctx context.Context, listingID uint64) (*marketplace.DataListing, error) {
	return s.uow.GetListing(ctx, listingID)
}

// GetMarketplace reads the singleton marketplace record.
func (s *Service) GetMarketplace(ctx context.Context) (*marketplace.Marketplace, error) {
	return s.uow.GetMarketplace(ctx)
}

func (s *Service) publish(ctx context.Context, event marketplace.Event) {
	if s.events == nil {
		return
	}
	// Best effort; the publisher logs its own failures.
	_ = s.events.Publish(ctx, event)
}
