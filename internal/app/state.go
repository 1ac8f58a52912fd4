package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

// AppState is process-wide state shared by the screens: the single in-progress
// transaction draft and the transaction-type catalog.
type AppState struct {
	mu      sync.RWMutex
	backend Backend
	logger  *slog.Logger

	draft   *domain.Transaction
	catalog []domain.TransactionType
}

func NewAppState(backend Backend, logger *slog.Logger) *AppState {
	return &AppState{
		backend: backend,
		logger:  loggerOrDefault(logger).With("component", "app_state"),
		catalog: domain.DefaultTransactionTypes(),
	}
}

// Draft returns a copy of the current draft.
func (s *AppState) Draft() (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.draft == nil {
		return domain.Transaction{}, false
	}
	return *s.draft, true
}

// SetDraft replaces any prior draft. There is only ever one.
func (s *AppState) SetDraft(tx domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = &tx
}

// UpdateDraft mutates the draft in place.
func (s *AppState) UpdateDraft(fn func(tx *domain.Transaction)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return ErrNoDraft
	}
	fn(s.draft)
	return nil
}

// ClearDraft discards the draft when the user leaves the flow.
func (s *AppState) ClearDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
}

// Catalog returns the transaction types, never empty.
func (s *AppState) Catalog() []domain.TransactionType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TransactionType, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// HasType reports whether value is a member of the loaded catalog.
func (s *AppState) HasType(value string) bool {
	if value == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.catalog {
		if t.Value == value {
			return true
		}
	}
	return false
}

// LoadCatalog refreshes the catalog from the backend. Any failure, or an empty
// catalog, falls back to the built-in defaults.
func (s *AppState) LoadCatalog(ctx context.Context) []domain.TransactionType {
	types, err := s.backend.TransactionTypes(ctx)
	if err != nil || len(types) == 0 {
		if err != nil {
			s.logger.Warn("failed to load transaction types; using defaults", "err", err)
		}
		types = domain.DefaultTransactionTypes()
	}

	s.mu.Lock()
	s.catalog = types
	s.mu.Unlock()
	return s.Catalog()
}

// RefreshCatalog is the cron entry point.
func (s *AppState) RefreshCatalog() {
	s.LoadCatalog(context.Background())
}
