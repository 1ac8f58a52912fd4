package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

// PaymentView is the pre-payment review screen.
type PaymentView struct {
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Total       string              `json:"total,omitempty"`
	Initiating  bool                `json:"initiating"`
	Error       string              `json:"error,omitempty"`
}

// PaymentFlow turns the current draft into a checkout request.
type PaymentFlow struct {
	mu      sync.Mutex
	backend Backend
	state   *AppState
	events  EventPublisher
	logger  *slog.Logger

	initiating bool
	lastError  string
}

func NewPaymentFlow(backend Backend, state *AppState, events EventPublisher, logger *slog.Logger) *PaymentFlow {
	return &PaymentFlow{
		backend: backend,
		state:   state,
		events:  events,
		logger:  loggerOrDefault(logger).With("component", "payment"),
	}
}

func (p *PaymentFlow) View() PaymentView {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := PaymentView{Initiating: p.initiating, Error: p.lastError}
	if tx, ok := p.state.Draft(); ok {
		view.Transaction = &tx
		view.Total = tx.Total().String()
	}
	return view
}

// Initiate starts payment for the draft and stores the checkout request id on it.
// On failure the draft is left untouched so the user can retry.
func (p *PaymentFlow) Initiate(ctx context.Context) (*domain.PaymentInitiation, error) {
	p.mu.Lock()
	if p.initiating {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	draft, ok := p.state.Draft()
	if !ok || draft.ID == "" {
		p.mu.Unlock()
		return nil, ErrNoDraft
	}
	p.initiating = true
	p.lastError = ""
	p.mu.Unlock()

	initiation, err := p.backend.InitiatePayment(ctx, draft.ID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initiating = false
	if err != nil {
		p.lastError = userMessage(err)
		p.logger.Warn("payment initiation failed", "transaction_id", draft.ID, "err", err)
		return nil, err
	}

	updateErr := p.state.UpdateDraft(func(tx *domain.Transaction) {
		if tx.ID != draft.ID {
			return
		}
		tx.CheckoutRequestID = initiation.CheckoutRequestID
		if initiation.Status != "" {
			tx.Status = initiation.Status
		}
	})
	if updateErr != nil {
		p.logger.Info("draft cleared while payment was initiating", "transaction_id", draft.ID)
	}

	p.logger.Info("payment initiated", "transaction_id", draft.ID, "checkout_request_id", initiation.CheckoutRequestID)
	publishEvent(ctx, p.events, p.logger, domain.ClientEvent{
		Name:              domain.EventPaymentInitiated,
		TransactionID:     draft.ID,
		Reference:         draft.Reference,
		CheckoutRequestID: initiation.CheckoutRequestID,
		Amount:            draft.Total().String(),
		Status:            initiation.Status,
	})
	return initiation, nil
}

// Leave discards the draft when the user leaves the payment flow.
func (p *PaymentFlow) Leave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastError = ""
	p.state.ClearDraft()
}
