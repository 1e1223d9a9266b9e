package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledger "main/internal/domain/entity/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger accounts. Debits are guarded in SQL (balance >= amount) so an
// overdraw never leaves the row changed; inside a unit of work both legs of
// a transfer roll back together with the record writes.

func (r *Repository) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return createAccount(ctx, r.pool, a)
}

func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return getAccount(ctx, r.pool, id)
}

// Transfer outside a unit of work still needs both legs atomic, so the
// pool-level path opens its own transaction.
func (r *Repository) Transfer(ctx context.Context, from, to uuid.UUID, amount uint64, auth ledger.Authorization) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = transfer(ctx, tx, from, to, amount, auth); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (v *txView) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return createAccount(ctx, v.tx, a)
}

func (v *txView) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return getAccount(ctx, v.tx, id)
}

func (v *txView) Transfer(ctx context.Context, from, to uuid.UUID, amount uint64, auth ledger.Authorization) error {
	return transfer(ctx, v.tx, from, to, amount, auth)
}

func createAccount(ctx context.Context, q querier, a *ledger.Account) error {
	const query = `
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)`

	balance, err := toBigint(a.Balance)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query, a.ID, balance, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicateAccount
	}
	return err
}

func getAccount(ctx context.Context, q querier, id uuid.UUID) (*ledger.Account, error) {
	const query = `
		SELECT id, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	var (
		a       ledger.Account
		balance int64
	)
	err := q.QueryRow(ctx, query, id).Scan(&a.ID, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, ledger.ErrAccountNotFound)
		}
		return nil, err
	}
	a.Balance = uint64(balance)
	return &a, nil
}

func transfer(ctx context.Context, q querier, from, to uuid.UUID, amount uint64, auth ledger.Authorization) error {
	if !auth.Covers(from) {
		return ledger.ErrUnauthorized
	}
	if amount == 0 {
		return nil
	}
	// A sign-flipped amount would satisfy the debit guard for every account
	// and turn the subtraction into a credit.
	value, err := toBigint(amount)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	const debit = `
		UPDATE accounts
		SET balance = balance - $2,
			updated_at = $3
		WHERE id = $1 AND balance >= $2`

	tag, err := q.Exec(ctx, debit, from, value, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := getAccount(ctx, q, from); err != nil {
			return err
		}
		return fmt.Errorf("account %s: %w", from, ledger.ErrInsufficientFunds)
	}

	const credit = `
		UPDATE accounts
		SET balance = balance + $2,
			updated_at = $3
		WHERE id = $1`

	tag, err = q.Exec(ctx, credit, to, value, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", to, ledger.ErrAccountNotFound)
	}
	return nil
}
