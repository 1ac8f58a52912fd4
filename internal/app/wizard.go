package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/google/uuid"
)

// Wizard steps. Transitions are linear; no skipping.
const (
	StepRecipient = 1
	StepAmount    = 2
	StepType      = 3
	StepReview    = 4
)

// Form field names, as used in ValidationErrors and SetField.
const (
	FieldRecipientType   = "recipient_type"
	FieldRecipientMobile = "recipient_mobile"
	FieldPaybillNumber   = "paybill_number"
	FieldAccountNumber   = "account_number"
	FieldAmount          = "amount"
	FieldTransactionType = "transaction_type"
	FieldConditions      = "conditions"
	FieldSenderMobile    = "sender_mobile"
)

// WizardForm is the raw user input, kept as strings until submission.
type WizardForm struct {
	RecipientType   domain.RecipientType `json:"recipient_type"`
	RecipientMobile string               `json:"recipient_mobile"`
	PaybillNumber   string               `json:"paybill_number"`
	AccountNumber   string               `json:"account_number"`
	Amount          string               `json:"amount"`
	TransactionType string               `json:"transaction_type"`
	Conditions      string               `json:"conditions"`
	SenderMobile    string               `json:"sender_mobile"`
}

// WizardView is what the wizard screen renders.
type WizardView struct {
	ID          string              `json:"id"`
	Step        int                 `json:"step"`
	TotalSteps  int                 `json:"total_steps"`
	Form        WizardForm          `json:"form"`
	Errors      ValidationErrors    `json:"errors"`
	Banner      string              `json:"banner,omitempty"`
	Fee         string              `json:"fee,omitempty"`
	Total       string              `json:"total,omitempty"`
	Submitting  bool                `json:"submitting"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// NextResult reports what Next did.
type NextResult struct {
	Advanced    bool
	Submitted   bool
	Transaction *domain.Transaction
}

// Wizard is the four-step escrow creation state machine.
type Wizard struct {
	mu      sync.Mutex
	backend Backend
	state   *AppState
	session *Session
	events  EventPublisher
	logger  *slog.Logger

	id         string
	generation uint64
	step       int
	form       WizardForm
	errors     ValidationErrors
	banner     string
	submitting bool
	created    *domain.Transaction
}

func NewWizard(backend Backend, state *AppState, session *Session, events EventPublisher, logger *slog.Logger) *Wizard {
	w := &Wizard{
		backend: backend,
		state:   state,
		session: session,
		events:  events,
		logger:  loggerOrDefault(logger).With("component", "wizard"),
	}
	w.resetLocked()
	return w
}

func (w *Wizard) resetLocked() {
	w.id = uuid.NewString()
	w.generation++
	w.step = StepRecipient
	w.form = WizardForm{RecipientType: domain.RecipientMobile}
	if w.session != nil && !w.session.IsGuest() {
		w.form.SenderMobile = w.session.Phone()
	}
	w.errors = ValidationErrors{}
	w.banner = ""
	w.submitting = false
	w.created = nil
}

// Start begins a fresh wizard. Any in-flight submit of the previous one is discarded,
// and so is the draft it may have left behind.
func (w *Wizard) Start() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	if w.state != nil {
		w.state.ClearDraft()
	}
	return w.viewLocked()
}

// View returns the current screen state.
func (w *Wizard) View() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Wizard) viewLocked() WizardView {
	view := WizardView{
		ID:         w.id,
		Step:       w.step,
		TotalSteps: StepReview,
		Form:       w.form,
		Errors:     w.errors.clone(),
		Banner:     w.banner,
		Submitting: w.submitting,
	}
	if amount, err := domain.ParseAmount(w.form.Amount); err == nil {
		fee := domain.CalculateFee(amount)
		view.Fee = fee.String()
		view.Total = amount.Add(fee).String()
	}
	if w.created != nil {
		tx := *w.created
		view.Transaction = &tx
	}
	return view
}

// SetField updates one form field and clears its inline error.
func (w *Wizard) SetField(name, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setFieldLocked(name, value)
}

// SetFields applies several field updates at once.
func (w *Wizard) SetFields(fields map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, value := range fields {
		if err := w.setFieldLocked(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wizard) setFieldLocked(name, value string) error {
	switch name {
	case FieldRecipientType:
		switch domain.RecipientType(strings.ToLower(strings.TrimSpace(value))) {
		case domain.RecipientPaybill:
			w.form.RecipientType = domain.RecipientPaybill
		case domain.RecipientMobile:
			w.form.RecipientType = domain.RecipientMobile
		default:
			return ValidationErrors{FieldRecipientType: "Recipient type must be mobile or paybill"}
		}
		delete(w.errors, FieldRecipientMobile)
		delete(w.errors, FieldPaybillNumber)
		delete(w.errors, FieldAccountNumber)
	case FieldRecipientMobile:
		w.form.RecipientMobile = value
	case FieldPaybillNumber:
		w.form.PaybillNumber = value
	case FieldAccountNumber:
		w.form.AccountNumber = value
	case FieldAmount:
		w.form.Amount = value
	case FieldTransactionType:
		w.form.TransactionType = value
	case FieldConditions:
		w.form.Conditions = value
	case FieldSenderMobile:
		w.form.SenderMobile = value
	default:
		return fmt.Errorf("unknown wizard field %q", name)
	}
	delete(w.errors, name)
	return nil
}

// DismissBanner clears the submission error banner.
func (w *Wizard) DismissBanner() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.banner = ""
}

// Back moves to the previous step. From the first step it reports exit=true: the user
// leaves the flow, so the form is reset and the draft discarded.
func (w *Wizard) Back() (exit bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step <= StepRecipient {
		w.resetLocked()
		if w.state != nil {
			w.state.ClearDraft()
		}
		return true
	}
	w.step--
	return false
}

// Next validates the current step and advances. On the review step it validates
// every field and submits.
func (w *Wizard) Next(ctx context.Context) (NextResult, error) {
	w.mu.Lock()
	if w.step < StepReview {
		errs := w.validateStepLocked(w.step)
		w.errors = errs
		if len(errs) > 0 {
			w.mu.Unlock()
			return NextResult{}, errs
		}
		w.step++
		w.mu.Unlock()
		return NextResult{Advanced: true}, nil
	}
	w.mu.Unlock()

	tx, err := w.Submit(ctx)
	if err != nil {
		return NextResult{}, err
	}
	return NextResult{Submitted: true, Transaction: tx}, nil
}

func (w *Wizard) validateStepLocked(step int) ValidationErrors {
	errs := ValidationErrors{}
	switch step {
	case StepRecipient:
		if w.form.RecipientType == domain.RecipientPaybill {
			if strings.TrimSpace(w.form.PaybillNumber) == "" {
				errs[FieldPaybillNumber] = "Paybill/Till number required"
			}
			if strings.TrimSpace(w.form.AccountNumber) == "" {
				errs[FieldAccountNumber] = "Account number required"
			}
		} else if !domain.ValidMSISDN(strings.TrimSpace(w.form.RecipientMobile)) {
			errs[FieldRecipientMobile] = "Valid mobile number required (+254...)"
		}
	case StepAmount:
		if _, err := domain.ParseAmount(w.form.Amount); err != nil {
			errs[FieldAmount] = "Valid amount required"
		}
	case StepType:
		if strings.TrimSpace(w.form.TransactionType) == "" {
			errs[FieldTransactionType] = "Transaction type required"
		} else if w.state != nil && !w.state.HasType(w.form.TransactionType) {
			errs[FieldTransactionType] = "Please select a transaction type from the list"
		}
	case StepReview:
		for _, s := range []int{StepRecipient, StepAmount, StepType} {
			for field, msg := range w.validateStepLocked(s) {
				errs[field] = msg
			}
		}
		if !domain.ValidMSISDN(strings.TrimSpace(w.form.SenderMobile)) {
			errs[FieldSenderMobile] = "Please enter a valid sender mobile number (format: +254712345678)"
		}
	}
	return errs
}

// Submit validates every field and, if clean, issues exactly one create call. The
// created transaction becomes the app's single draft.
func (w *Wizard) Submit(ctx context.Context) (*domain.Transaction, error) {
	w.mu.Lock()
	if w.step != StepReview {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	errs := w.validateStepLocked(StepReview)
	w.errors = errs
	if len(errs) > 0 {
		w.mu.Unlock()
		return nil, errs
	}

	amount, _ := domain.ParseAmount(w.form.Amount)
	req := domain.CreateTransactionRequest{
		RecipientType:   w.form.RecipientType,
		SenderMobile:    strings.TrimSpace(w.form.SenderMobile),
		Amount:          amount,
		Fee:             domain.CalculateFee(amount),
		TransactionType: w.form.TransactionType,
		Conditions:      strings.TrimSpace(w.form.Conditions),
	}
	if req.RecipientType == domain.RecipientPaybill {
		req.PaybillNumber = strings.TrimSpace(w.form.PaybillNumber)
		req.AccountNumber = strings.TrimSpace(w.form.AccountNumber)
	} else {
		req.RecipientMobile = strings.TrimSpace(w.form.RecipientMobile)
	}
	generation := w.generation
	w.submitting = true
	w.banner = ""
	w.mu.Unlock()

	created, err := w.backend.CreateTransaction(ctx, req)

	w.mu.Lock()
	if generation != w.generation {
		w.mu.Unlock()
		w.logger.Info("discarding stale create response", "generation", generation)
		return nil, ErrStaleResponse
	}
	w.submitting = false
	if err != nil {
		w.banner = userMessage(err)
		w.mu.Unlock()
		w.logger.Warn("create transaction failed", "err", err)
		return nil, err
	}

	tx := mergeCreated(req, created)
	w.created = &tx
	if w.state != nil {
		w.state.SetDraft(tx)
	}
	w.mu.Unlock()

	w.logger.Info("transaction created", "transaction_id", tx.ID, "reference", tx.Reference)
	publishEvent(ctx, w.events, w.logger, domain.ClientEvent{
		Name:          domain.EventTransactionCreated,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Amount:        tx.Amount.String(),
		Status:        tx.Status,
	})
	out := tx
	return &out, nil
}

// mergeCreated overlays the server response on the submitted working copy.
// Server-assigned values win, including the authoritative fee.
func mergeCreated(req domain.CreateTransactionRequest, server *domain.Transaction) domain.Transaction {
	tx := domain.Transaction{
		RecipientType:   req.RecipientType,
		RecipientMobile: req.RecipientMobile,
		PaybillNumber:   req.PaybillNumber,
		AccountNumber:   req.AccountNumber,
		SenderMobile:    req.SenderMobile,
		Amount:          req.Amount,
		Fee:             req.Fee,
		TransactionType: req.TransactionType,
		Conditions:      req.Conditions,
	}
	if server == nil {
		return tx
	}
	tx.ID = server.ID
	tx.Reference = server.Reference
	tx.Status = server.Status
	tx.CheckoutRequestID = server.CheckoutRequestID
	tx.CreatedAt = server.CreatedAt
	tx.PaymentInitiatedAt = server.PaymentInitiatedAt
	tx.FundedAt = server.FundedAt
	tx.CompletedAt = server.CompletedAt
	if server.Amount.IsPositive() {
		tx.Amount = server.Amount
	}
	if server.Fee.IsPositive() {
		tx.Fee = server.Fee
	}
	if server.SenderMobile != "" {
		tx.SenderMobile = server.SenderMobile
	}
	if server.TransactionType != "" {
		tx.TransactionType = server.TransactionType
	}
	if server.Conditions != "" {
		tx.Conditions = server.Conditions
	}
	return tx
}
