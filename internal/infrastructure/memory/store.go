package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	ledger "main/internal/domain/entity/ledger"
	domain "main/internal/domain/entity/marketplace"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

// Store is an in-memory record store and value ledger with the same contract
// as the Postgres repository. It backs the test suite and the embedded dev
// mode of the server (no DATABASE_DSN configured). A single mutex is the
// commit boundary: Atomic stages every write on a copy of the state and
// swaps it in only when fn succeeds, so a failed operation leaves nothing
// behind.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ interfaces.UnitOfWork = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) Close() {}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx interfaces.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.st.clone()
	if err := fn(ctx, &txView{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) CreateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createMarketplace(m)
}

func (s *Store) GetMarketplace(ctx context.Context) (*domain.Marketplace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getMarketplace()
}

func (s *Store) UpdateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateMarketplace(m)
}

func (s *Store) CreateListing(ctx context.Context, l *domain.DataListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createListing(l)
}

func (s *Store) GetListing(ctx context.Context, id uint64) (*domain.DataListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getListing(id)
}

func (s *Store) UpdateListing(ctx context.Context, l *domain.DataListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateListing(l)
}

func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createAccount(a)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getAccount(id)
}

func (s *Store) Transfer(ctx context.Context, from, to uuid.UUID, amount uint64, auth ledger.Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.transfer(from, to, amount, auth)
}

// txView runs against the staged state while Atomic holds the store mutex.
type txView struct {
	st *state
}

var _ interfaces.Tx = (*txView)(nil)

func (v *txView) CreateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return v.st.createMarketplace(m)
}

func (v *txView) GetMarketplace(ctx context.Context) (*domain.Marketplace, error) {
	return v.st.getMarketplace()
}

func (v *txView) UpdateMarketplace(ctx context.Context, m *domain.Marketplace) error {
	return v.st.updateMarketplace(m)
}

func (v *txView) CreateListing(ctx context.Context, l *domain.DataListing) error {
	return v.st.createListing(l)
}

func (v *txView) GetListing(ctx context.Context, id uint64) (*domain.DataListing, error) {
	return v.st.getListing(id)
}

func (v *txView) UpdateListing(ctx context.Context, l *domain.DataListing) error {
	return v.st.updateListing(l)
}

func (v *txView) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return v.st.createAccount(a)
}

func (v *txView) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	return v.st.getAccount(id)
}

func (v *txView) Transfer(ctx context.Context, from, to uuid.UUID, amount uint64, auth ledger.Authorization) error {
	return v.st.transfer(from, to, amount, auth)
}

// state holds the records. Reads hand out copies so an entity mutation only
// becomes visible through an explicit update.
type state struct {
	marketplace *domain.Marketplace
	listings    map[uint64]*domain.DataListing
	accounts    map[uuid.UUID]*ledger.Account
}

func newState() *state {
	return &state{
		listings: make(map[uint64]*domain.DataListing),
		accounts: make(map[uuid.UUID]*ledger.Account),
	}
}

func (s *state) clone() *state {
	c := newState()
	if s.marketplace != nil {
		m := *s.marketplace
		c.marketplace = &m
	}
	for id, l := range s.listings {
		cp := *l
		c.listings[id] = &cp
	}
	for id, a := range s.accounts {
		cp := *a
		c.accounts[id] = &cp
	}
	return c
}

func (s *state) createMarketplace(m *domain.Marketplace) error {
	if s.marketplace != nil {
		return domain.ErrAlreadyInitialized
	}
	cp := *m
	s.marketplace = &cp
	return nil
}

func (s *state) getMarketplace() (*domain.Marketplace, error) {
	if s.marketplace == nil {
		return nil, fmt.Errorf("marketplace: %w", domain.ErrNotFound)
	}
	cp := *s.marketplace
	return &cp, nil
}

func (s *state) updateMarketplace(m *domain.Marketplace) error {
	if s.marketplace == nil {
		return fmt.Errorf("marketplace: %w", domain.ErrNotFound)
	}
	cp := *m
	s.marketplace = &cp
	return nil
}

func (s *state) createListing(l *domain.DataListing) error {
	if _, ok := s.listings[l.ID]; ok {
		return domain.ErrDuplicateListing
	}
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *state) getListing(id uint64) (*domain.DataListing, error) {
	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (s *state) updateListing(l *domain.DataListing) error {
	if _, ok := s.listings[l.ID]; !ok {
		return fmt.Errorf("listing %d: %w", l.ID, domain.ErrNotFound)
	}
	cp := *l
	s.listings[l.ID] = &cp
	return nil
}

func (s *state) createAccount(a *ledger.Account) error {
	if _, ok := s.accounts[a.ID]; ok {
		return ledger.ErrDuplicateAccount
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *state) getAccount(id uuid.UUID) (*ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ledger.ErrAccountNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *state) transfer(from, to uuid.UUID, amount uint64, auth ledger.Authorization) error {
	if !auth.Covers(from) {
		return ledger.ErrUnauthorized
	}
	if amount == 0 {
		return nil
	}
	src, err := s.getAccount(from)
	if err != nil {
		return err
	}
	dst := src
	if to != from {
		if dst, err = s.getAccount(to); err != nil {
			return err
		}
	}
	now := time.Now()
	if err := src.Debit(amount, now); err != nil {
		return fmt.Errorf("account %s: %w", from, err)
	}
	if err := dst.Credit(amount, now); err != nil {
		return fmt.Errorf("account %s: %w", to, err)
	}
	s.accounts[from] = src
	s.accounts[to] = dst
	return nil
}
