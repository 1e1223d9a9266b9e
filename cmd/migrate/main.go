package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	ledger "main/internal/domain/entity/ledger"
)

// Applies the schema from docs/db_doc.md and optionally seeds demo ledger
// accounts for local development.

var schema = []string{
	`CREATE TABLE IF NOT EXISTS marketplace (
		id               SMALLINT PRIMARY KEY CHECK (id = 1),
		authority        UUID        NOT NULL,
		fee_basis_points INTEGER     NOT NULL CHECK (fee_basis_points BETWEEN 0 AND 10000),
		total_listings   BIGINT      NOT NULL DEFAULT 0,
		total_volume     BIGINT      NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id           BIGINT PRIMARY KEY,
		owner        UUID        NOT NULL,
		price        BIGINT      NOT NULL,
		data_type    TEXT        NOT NULL,
		custom_type  TEXT        NOT NULL DEFAULT '',
		description  TEXT        NOT NULL DEFAULT '',
		is_active    BOOLEAN     NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		sold_at      TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		buyer        UUID
	)`,
	`CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id         UUID PRIMARY KEY,
		balance    BIGINT      NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		logger.Fatal("DATABASE_DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Fatalf("apply schema: %v", err)
		}
	}
	logger.WithField("statements", len(schema)).Info("schema applied")

	count := intEnv("SEED_DEMO_ACCOUNTS", 0)
	if count <= 0 {
		return
	}
	balance := intEnv("SEED_DEMO_BALANCE", 1_000_000)
	if balance < 0 {
		balance = 0
	}
	accounts := demoAccounts(count, uint64(balance))
	if err := upsertAccounts(ctx, pool, accounts); err != nil {
		logger.Fatalf("seed accounts: %v", err)
	}
	for _, a := range accounts {
		logger.WithFields(logrus.Fields{
			"account": a.ID,
			"balance": a.Balance,
		}).Info("demo account ready")
	}
}

func intEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// demoAccounts derives stable ids so reruns hit the same rows.
func demoAccounts(count int, balance uint64) []*ledger.Account {
	now := time.Now()
	accounts := make([]*ledger.Account, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("demo-account:"+strconv.Itoa(i)))
		accounts = append(accounts, ledger.NewAccount(id, balance, now))
	}
	return accounts
}

func upsertAccounts(ctx context.Context, pool *pgxpool.Pool, accounts []*ledger.Account) error {
	batch := &pgx.Batch{}
	for _, a := range accounts {
		batch.Queue(`
			INSERT INTO accounts (id, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET balance = EXCLUDED.balance,
			    updated_at = EXCLUDED.updated_at`,
			a.ID,
			int64(a.Balance),
			a.CreatedAt,
			a.UpdatedAt,
		)
	}
	return execBatch(ctx, pool, batch)
}

func execBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}
