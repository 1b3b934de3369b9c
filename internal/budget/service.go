package budget

import (
	"context"
	"fmt"
	"strings"
	"sync"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/logging"
	"github.com/shopspring/decimal"
)

// Backend is the slice of the remote API the store depends on.
type Backend interface {
	ListTransactions(ctx context.Context, ownerID string) ([]Transaction, error)
	CreateTransaction(ctx context.Context, t NewTransaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, id string, fields Fields) error
}

type CredentialSource interface {
	CurrentCredential() (string, bool)
}

var errNoSession = appErrors.ErrorResponse{
	Code:    appErrors.ErrAuth,
	Message: "You need to login first.",
}

// RefreshError reports a write that the server confirmed but whose
// follow-up reload failed. Callers must not retry the write.
type RefreshError struct {
	Err error
}

func (e RefreshError) Error() string {
	return fmt.Sprintf("saved, but failed to refresh transactions: %v", e.Err)
}

func (e RefreshError) Unwrap() error {
	return e.Err
}

type Snapshot struct {
	Transactions []Transaction
	Budget       decimal.Decimal
	Loaded       bool
}

// TransactionStore mirrors the server's transaction list for one owner.
// The cache only changes when a full list response is applied.
type TransactionStore struct {
	backend Backend
	session CredentialSource

	mu     sync.Mutex
	cache  []Transaction
	budget decimal.Decimal
	loaded bool
	owner  string

	// issued counts load requests; applied is the newest one whose
	// response reached the cache. epoch changes on Reset.
	issued  uint64
	applied uint64
	epoch   uint64
}

func NewTransactionStore(backend Backend, session CredentialSource) *TransactionStore {
	return &TransactionStore{
		backend: backend,
		session: session,
		budget:  decimal.Zero,
	}
}

// Load replaces the cache with the owner's list. Without an active session
// it does nothing. A response is dropped when a newer load already landed
// or the store was reset while it was in flight.
func (s *TransactionStore) Load(ctx context.Context, ownerID string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	if _, ok := s.session.CurrentCredential(); !ok {
		logging.Logger.Debugf("[TraceID=%s] | load skipped, no active session", traceID)
		return nil
	}
	if strings.TrimSpace(ownerID) == "" {
		return appErrors.Validation("Owner cannot be empty!")
	}

	s.mu.Lock()
	s.issued++
	seq := s.issued
	epoch := s.epoch
	s.mu.Unlock()

	transactions, err := s.backend.ListTransactions(ctx, ownerID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to load transactions | Error: %v", traceID, err)
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || seq < s.applied {
		logging.Logger.Debugf("[TraceID=%s] | discarded stale transaction list (request %d)", traceID, seq)
		return nil
	}

	cache := make([]Transaction, len(transactions))
	copy(cache, transactions)

	s.cache = cache
	s.budget = ComputeBudget(cache)
	s.loaded = true
	s.owner = ownerID
	s.applied = seq

	logging.Logger.Debugf("[TraceID=%s] | loaded %d transactions, budget %s", traceID, len(cache), s.budget.StringFixed(2))
	return nil
}

// Create validates the input, sends it, and reloads on success.
func (s *TransactionStore) Create(ctx context.Context, ownerID string, name string, kind string, amount string) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	k, err := ParseKind(kind)
	if err != nil {
		return err
	}
	parsed, err := ParseAmount(amount)
	if err != nil {
		return err
	}
	newTransaction := NewTransaction{
		OwnerID: strings.TrimSpace(ownerID),
		Name:    strings.TrimSpace(name),
		Kind:    k,
		Amount:  parsed,
	}
	if err := newTransaction.Validate(); err != nil {
		return err
	}

	if _, ok := s.session.CurrentCredential(); !ok {
		return errNoSession
	}

	created, err := s.backend.CreateTransaction(ctx, newTransaction)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to add transaction | Error: %v", traceID, err)
		return fmt.Errorf("failed to add transaction: %w", err)
	}
	logging.Logger.Infof("[TraceID=%s] | transaction created: %s", traceID, created.ID)

	if err := s.Load(ctx, newTransaction.OwnerID); err != nil {
		return RefreshError{Err: err}
	}
	return nil
}

// Update sends a partial update. The cache is never patched locally; on
// success the last loaded owner is reloaded.
func (s *TransactionStore) Update(ctx context.Context, id string, fields Fields) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	if strings.TrimSpace(id) == "" {
		return appErrors.Validation("Transaction id cannot be empty!")
	}
	if fields.IsEmpty() {
		return appErrors.Validation("Nothing to update.")
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	credential, ok := s.session.CurrentCredential()
	if !ok {
		return errNoSession
	}

	if err := s.backend.UpdateTransaction(ctx, id, fields); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update transaction %s | Error: %v", traceID, id, err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	logging.Logger.Infof("[TraceID=%s] | transaction updated: %s", traceID, id)

	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()
	if owner == "" {
		owner = credential
	}

	if err := s.Load(ctx, owner); err != nil {
		return RefreshError{Err: err}
	}
	return nil
}

// FindByID looks id up in the current cache only.
func (s *TransactionStore) FindByID(id string) (Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.cache {
		if t.ID == id {
			return t, true
		}
	}
	return Transaction{}, false
}

// Lookup is FindByID reporting a miss as a NOT FOUND error.
func (s *TransactionStore) Lookup(id string) (Transaction, error) {
	t, ok := s.FindByID(id)
	if !ok {
		return Transaction{}, appErrors.NotFound("transaction %s is no longer available", id)
	}
	return t, nil
}

func (s *TransactionStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	transactions := make([]Transaction, len(s.cache))
	copy(transactions, s.cache)
	return Snapshot{
		Transactions: transactions,
		Budget:       s.budget,
		Loaded:       s.loaded,
	}
}

func (s *TransactionStore) Budget() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

func (s *TransactionStore) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Reset empties the cache and invalidates any load still in flight. It is
// registered as a logout hook.
func (s *TransactionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = nil
	s.budget = decimal.Zero
	s.loaded = false
	s.owner = ""
	s.epoch++
}
