package ledger

import (
	"context"
	"time"

	ledger "main/internal/domain/entity/ledger"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

// Service exposes the account side of the value ledger: opening accounts,
// reading balances. Transfers themselves only happen inside marketplace
// operations, never as a standalone call.
type Service struct {
	uow interfaces.UnitOfWork
}

func NewService(uow interfaces.UnitOfWork) *Service {
	return &Service{uow: uow}
}

// OpenAccount creates an account for the identity with an opening balance.
func (s *Service) OpenAccount(ctx context.Context, id uuid.UUID, openingBalance uint64) (*ledger.Account, error) {
	a := ledger.NewAccount(id, openingBalance, time.Now())
	if err := s.uow.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount reads an account and its current balance.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return s.uow.GetAccount(ctx, id)
}
