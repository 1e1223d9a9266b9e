package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math"

	domain "main/internal/domain/entity/marketplace"
	interfaces "main/internal/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository is the Postgres-backed record store and value ledger. The
// marketplace row, the listing rows, and the ledger accounts live in one
// database so a unit of work brackets them in a single transaction (see
// docs/db_doc.md for the table layout).
type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.UnitOfWork = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Atomic runs fn inside a transaction. Record reads performed through the
// transaction view take row locks, so concurrent operations on the same
// listing or on the marketplace row serialize and the loser observes the
// committed mutation.
func (r *Repository) Atomic(ctx context.Context, fn func(ctx context.Context, tx interfaces.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(ctx, &txView{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// txView exposes the store over an open transaction; reads lock rows.
type txView struct {
	tx pgx.Tx
}

var _ interfaces.Tx = (*txView)(nil)

// Marketplace record

func (r *Repository) CreateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return createMarketplace(ctx, r.pool, m)
}

func (r *Repository) GetMarketplace(ctx context.Context) (*domain.Marketplace, error) {
	return getMarketplace(ctx, r.pool, false)
}

func (r *Repository) UpdateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return updateMarketplace(ctx, r.pool, m)
}

func (v *txView) CreateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return createMarketplace(ctx, v.tx, m)
}

func (v *txView) GetMarketplace(ctx context.Context) (*domain.Marketplace, error) {
	return getMarketplace(ctx, v.tx, true)
}

func (v *txView) UpdateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return updateMarketplace(ctx, v.tx, m)
}

func createMarketplace(ctx context.Context, q querier, m *domain.Marketplace) error {
	const query = `
		INSERT INTO marketplace (id, authority, fee_basis_points, total_listings, total_volume, created_at)
		VALUES (1, $1, $2, $3, $4, $5)`

	totalListings, err := toBigint(m.TotalListings)
	if err != nil {
		return err
	}
	totalVolume, err := toBigint(m.TotalVolume)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query,
		m.Authority,
		int32(m.FeeBasisPoints),
		totalListings,
		totalVolume,
		m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyInitialized
	}
	return err
}

func getMarketplace(ctx context.Context, q querier, lock bool) (*domain.Marketplace, error) {
	query := `
		SELECT authority, fee_basis_points, total_listings, total_volume, created_at
		FROM marketplace
		WHERE id = 1`
	if lock {
		query += " FOR UPDATE"
	}

	var (
		m             domain.Marketplace
		feeBps        int32
		totalListings int64
		totalVolume   int64
	)
	err := q.QueryRow(ctx, query).Scan(&m.Authority, &feeBps, &totalListings, &totalVolume, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("marketplace: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	m.FeeBasisPoints = uint16(feeBps)
	m.TotalListings = uint64(totalListings)
	m.TotalVolume = uint64(totalVolume)
	return &m, nil
}

func updateMarketplace(ctx context.Context, q querier, m *domain.Marketplace) error {
	const query = `
		UPDATE marketplace
		SET total_listings = $1,
			total_volume = $2
		WHERE id = 1`

	totalListings, err := toBigint(m.TotalListings)
	if err != nil {
		return err
	}
	totalVolume, err := toBigint(m.TotalVolume)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, query, totalListings, totalVolume)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("marketplace: %w", domain.ErrNotFound)
	}
	return nil
}

// Listing records

func (r *Repository) CreateListing(ctx context.Context, l *domain.DataListing) error {
	return createListing(ctx, r.pool, l)
}

func (r *Repository) GetListing(ctx context.Context, id uint64) (*domain.DataListing, error) {
	return getListing(ctx, r.pool, id, false)
}

func (r *Repository) UpdateListing(ctx context.Context, l *domain.DataListing) error {
	return updateListing(ctx, r.pool, l)
}

func (v *txView) CreateListing(ctx context.Context, l *domain.DataListing) error {
	return createListing(ctx, v.tx, l)
}

func (v *txView) GetListing(ctx context.Context, id uint64) (*domain.DataListing, error) {
	return getListing(ctx, v.tx, id, true)
}

func (v *txView) UpdateListing(ctx context.Context, l *domain.DataListing) error {
	return updateListing(ctx, v.tx, l)
}

func createListing(ctx context.Context, q querier, l *domain.DataListing) error {
	const query = `
		INSERT INTO listings (id, owner, price, data_type, custom_type, description, is_active, created_at, sold_at, cancelled_at, buyer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	id, err := toBigint(l.ID)
	if err != nil {
		return err
	}
	price, err := toBigint(l.Price)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, query,
		id,
		l.Owner,
		price,
		l.DataType.String(),
		l.CustomType,
		l.Description,
		l.IsActive,
		l.CreatedAt,
		l.SoldAt,
		l.CancelledAt,
		l.Buyer,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateListing
	}
	return err
}

func getListing(ctx context.Context, q querier, id uint64, lock bool) (*domain.DataListing, error) {
	// Ids past MaxInt64 can never have been stored.
	if id > math.MaxInt64 {
		return nil, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	query := `
		SELECT id, owner, price, data_type, custom_type, description, is_active, created_at, sold_at, cancelled_at, buyer
		FROM listings
		WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}

	var (
		l        domain.DataListing
		rowID    int64
		price    int64
		dataType string
	)
	err := q.QueryRow(ctx, query, int64(id)).Scan(
		&rowID,
		&l.Owner,
		&price,
		&dataType,
		&l.CustomType,
		&l.Description,
		&l.IsActive,
		&l.CreatedAt,
		&l.SoldAt,
		&l.CancelledAt,
		&l.Buyer,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	l.ID = uint64(rowID)
	l.Price = uint64(price)
	l.DataType = domain.DataType(dataType)
	return &l, nil
}

func updateListing(ctx context.Context, q querier, l *domain.DataListing) error {
	const query = `
		UPDATE listings
		SET price = $2,
			is_active = $3,
			sold_at = $4,
			cancelled_at = $5,
			buyer = $6
		WHERE id = $1`

	id, err := toBigint(l.ID)
	if err != nil {
		return err
	}
	price, err := toBigint(l.Price)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, query,
		id,
		price,
		l.IsActive,
		l.SoldAt,
		l.CancelledAt,
		l.Buyer,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %d: %w", l.ID, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// toBigint guards the down-cast to a BIGINT column. A value past MaxInt64 has
// no representation there; storing it would flip the sign and corrupt every
// comparison the SQL makes against the column.
func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, domain.ErrArithmeticOverflow
	}
	return int64(v), nil
}
