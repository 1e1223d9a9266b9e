package interfaces

import (
	"context"

	ledger "main/internal/domain/entity/ledger"

	"github.com/google/uuid"
)

// AccountStore persists ledger accounts. CreateAccount fails with
// ledger.ErrDuplicateAccount when the id exists; GetAccount fails with
// ledger.ErrAccountNotFound.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *ledger.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
}

// ValueTransfer debits from and credits to atomically. The authorization must
// cover the source account or the transfer fails with ledger.ErrUnauthorized;
// overdraw fails with ledger.ErrInsufficientFunds and neither account changes.
type ValueTransfer interface {
	Transfer(ctx context.Context, from, to uuid.UUID, amount uint64, auth ledger.Authorization) error
}
