package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("authorization does not cover the source account")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Account holds fungible value for a single identity. The account id equals
// the identity it belongs to.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAccount(id uuid.UUID, openingBalance uint64, now time.Time) *Account {
	ts := now.UTC()
	return &Account{
		ID:        id,
		Balance:   openingBalance,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Debit removes value, rejecting overdraw.
func (a *Account) Debit(amount uint64, now time.Time) error {
	if amount > a.Balance {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	a.UpdatedAt = now.UTC()
	return nil
}

// Credit adds value, rejecting wrap-around.
func (a *Account) Credit(amount uint64, now time.Time) error {
	if amount > math.MaxUint64-a.Balance {
		return ErrBalanceOverflow
	}
	a.Balance += amount
	a.UpdatedAt = now.UTC()
	return nil
}

// Authorization proves the caller may debit a source account. It is either
// the direct signer of that account or the delegated custodial capability the
// marketplace holds for its own fee balance. The core never verifies
// signatures; the fronting authenticator has already done that.
type Authorization struct {
	account   uuid.UUID
	custodial bool
}

// SignerAuthorization is presented by a verified actor for its own account.
func SignerAuthorization(actor uuid.UUID) Authorization {
	return Authorization{account: actor}
}

// CustodialAuthorization is the marketplace's delegated capability over its
// held fee balance. It is constructed only by the marketplace service and is
// never handed to external callers.
func CustodialAuthorization(holder uuid.UUID) Authorization {
	return Authorization{account: holder, custodial: true}
}

// Covers reports whether the authorization permits debiting from.
func (a Authorization) Covers(from uuid.UUID) bool {
	return a.account == from
}

// Custodial reports whether this is a delegated marketplace capability.
func (a Authorization) Custodial() bool {
	return a.custodial
}
