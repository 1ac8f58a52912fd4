package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

const MessageNoTransactionFound = "No transaction found with that reference number."

var (
	ErrNoTransactionFound = errors.New("no transaction found with that reference")
	ErrDetailsUnavailable = errors.New("transaction details are not available")
)

// HistoryResult is one row of a search result.
type HistoryResult struct {
	Transaction domain.Transaction  `json:"transaction"`
	Bucket      domain.StatusBucket `json:"status_bucket"`
	Total       string              `json:"total"`
}

// History searches transactions by reference.
type History struct {
	backend Backend
	logger  *slog.Logger
}

func NewHistory(backend Backend, logger *slog.Logger) *History {
	return &History{backend: backend, logger: loggerOrDefault(logger).With("component", "history")}
}

// Search trims reference and looks it up. An empty result is reported as
// ErrNoTransactionFound.
func (h *History) Search(ctx context.Context, reference string) ([]HistoryResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ValidationErrors{"reference": "Please enter a transaction reference to search"}
	}

	txs, err := h.backend.SearchTransactions(ctx, reference)
	if err != nil {
		h.logger.Warn("transaction search failed", "reference", reference, "err", err)
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNoTransactionFound
	}

	results := make([]HistoryResult, 0, len(txs))
	for _, tx := range txs {
		results = append(results, HistoryResult{
			Transaction: tx,
			Bucket:      tx.Flags().Bucket(),
			Total:       tx.Total().String(),
		})
	}
	return results, nil
}

// Open resolves a reference to the id of its first match.
func (h *History) Open(ctx context.Context, reference string) (string, error) {
	results, err := h.Search(ctx, reference)
	if err != nil {
		return "", err
	}
	id := results[0].Transaction.ID
	if id == "" {
		return "", ErrDetailsUnavailable
	}
	return id, nil
}
