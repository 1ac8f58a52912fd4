package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

// EscrowView is the escrow detail screen.
type EscrowView struct {
	Transaction *domain.Transaction   `json:"transaction,omitempty"`
	Role        domain.Role           `json:"role"`
	Bucket      domain.StatusBucket   `json:"status_bucket"`
	IsPending   bool                  `json:"is_pending"`
	IsFunded    bool                  `json:"is_funded"`
	IsCompleted bool                  `json:"is_completed"`
	Action      domain.Action         `json:"action,omitempty"`
	ActionLabel string                `json:"action_label,omitempty"`
	Timeline    []domain.TimelineStep `json:"timeline,omitempty"`
	Total       string                `json:"total,omitempty"`
	Message     string                `json:"message,omitempty"`
	Error       string                `json:"error,omitempty"`
	Busy        bool                  `json:"busy"`
}

// EscrowDetail loads one transaction and offers at most one escrow action, derived
// from the session phone and the transaction status on every render.
type EscrowDetail struct {
	mu      sync.Mutex
	backend Backend
	session *Session
	state   *AppState
	events  EventPublisher
	logger  *slog.Logger

	generation uint64
	id         string
	tx         *domain.Transaction
	message    string
	errMsg     string
	busy       bool
}

func NewEscrowDetail(backend Backend, session *Session, state *AppState, events EventPublisher, logger *slog.Logger) *EscrowDetail {
	return &EscrowDetail{
		backend: backend,
		session: session,
		state:   state,
		events:  events,
		logger:  loggerOrDefault(logger).With("component", "escrow_detail"),
	}
}

// Enter loads transaction id. Any response for a previously entered id is discarded.
func (e *EscrowDetail) Enter(ctx context.Context, id string) (EscrowView, error) {
	e.mu.Lock()
	e.generation++
	e.id = id
	e.tx = nil
	e.message = ""
	e.errMsg = ""
	e.busy = false
	e.mu.Unlock()

	if err := e.reload(ctx); err != nil {
		return e.View(), err
	}
	return e.View(), nil
}

// Exit forgets the loaded transaction.
func (e *EscrowDetail) Exit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.id = ""
	e.tx = nil
	e.message = ""
	e.errMsg = ""
	e.busy = false
}

// Reload refetches the transaction; role and action are recomputed from the result.
func (e *EscrowDetail) Reload(ctx context.Context) (EscrowView, error) {
	err := e.reload(ctx)
	return e.View(), err
}

func (e *EscrowDetail) reload(ctx context.Context) error {
	e.mu.Lock()
	generation, id := e.generation, e.id
	e.mu.Unlock()
	if id == "" {
		return ErrNoTransaction
	}

	tx, err := e.backend.GetTransaction(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation {
		return ErrStaleResponse
	}
	if err != nil {
		e.errMsg = userMessage(err)
		e.logger.Warn("failed to load transaction", "transaction_id", id, "err", err)
		return err
	}
	e.tx = tx
	return nil
}

// View renders the current transaction with a freshly resolved role and action.
func (e *EscrowDetail) View() EscrowView {
	phone := ""
	if e.session != nil {
		phone = e.session.Phone()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	view := EscrowView{Message: e.message, Error: e.errMsg, Busy: e.busy}
	if e.tx == nil {
		return view
	}
	tx := *e.tx
	flags := tx.Flags()
	role := domain.ResolveRole(&tx, phone)
	action := domain.ResolveAction(&tx, role)

	view.Transaction = &tx
	view.Role = role
	view.Bucket = flags.Bucket()
	view.IsPending = flags.IsPending
	view.IsFunded = flags.IsFunded
	view.IsCompleted = flags.IsCompleted
	view.Action = action
	view.ActionLabel = action.Label()
	view.Timeline = domain.Timeline(&tx)
	view.Total = tx.Total().String()
	return view
}

// begin checks that want is currently offered and marks the screen busy.
func (e *EscrowDetail) begin(want domain.Action) (domain.Transaction, uint64, error) {
	phone := ""
	if e.session != nil {
		phone = e.session.Phone()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tx == nil {
		return domain.Transaction{}, 0, ErrNoTransaction
	}
	if e.busy {
		return domain.Transaction{}, 0, ErrBusy
	}
	tx := *e.tx
	if domain.ResolveAction(&tx, domain.ResolveRole(&tx, phone)) != want {
		return domain.Transaction{}, 0, ErrActionNotAllowed
	}
	e.busy = true
	e.message = ""
	e.errMsg = ""
	return tx, e.generation, nil
}

// Release releases escrowed funds. Buyer only; reloads the transaction on success.
func (e *EscrowDetail) Release(ctx context.Context) (EscrowView, error) {
	tx, generation, err := e.begin(domain.ActionReleasePayment)
	if err != nil {
		return e.View(), err
	}

	message, err := e.backend.ReleasePayment(ctx, tx.ID)
	if stale := e.finish(generation, message, err); stale != nil {
		return e.View(), stale
	}
	if err != nil {
		e.logger.Warn("release payment failed", "transaction_id", tx.ID, "err", err)
		return e.View(), err
	}

	e.logger.Info("payment released", "transaction_id", tx.ID)
	publishEvent(ctx, e.events, e.logger, domain.ClientEvent{
		Name:          domain.EventEscrowReleased,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Amount:        tx.Amount.String(),
	})
	if err := e.reload(ctx); err != nil {
		e.logger.Warn("reload after release failed", "transaction_id", tx.ID, "err", err)
	}
	return e.View(), nil
}

// RequestRelease asks the buyer to release funds. Seller only; the only local effect
// is a confirmation message.
func (e *EscrowDetail) RequestRelease(ctx context.Context) (EscrowView, error) {
	tx, generation, err := e.begin(domain.ActionRequestRelease)
	if err != nil {
		return e.View(), err
	}

	message, err := e.backend.RequestRelease(ctx, tx.ID)
	if stale := e.finish(generation, message, err); stale != nil {
		return e.View(), stale
	}
	if err != nil {
		e.logger.Warn("request release failed", "transaction_id", tx.ID, "err", err)
		return e.View(), err
	}

	publishEvent(ctx, e.events, e.logger, domain.ClientEvent{
		Name:          domain.EventEscrowReleaseRequested,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
	})
	return e.View(), nil
}

func (e *EscrowDetail) finish(generation uint64, message string, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation {
		return ErrStaleResponse
	}
	e.busy = false
	if err != nil {
		e.errMsg = userMessage(err)
		return nil
	}
	e.message = message
	return nil
}

// ContinuePayment makes the loaded transaction the app draft so payment can resume.
func (e *EscrowDetail) ContinuePayment() (domain.Transaction, error) {
	tx, _, err := e.begin(domain.ActionContinuePayment)
	if err != nil {
		return domain.Transaction{}, err
	}
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()

	if e.state != nil {
		e.state.SetDraft(tx)
	}
	return tx, nil
}
