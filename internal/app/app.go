/**
 * @description
 * This package holds the client state machines of the eConfirm app: the escrow wizard,
 * payment initiation and status polling, the escrow detail screen, OTP verification,
 * and the session/app state they share. Every component is driven explicitly by its
 * caller (enter/exit, next/back) and talks to the backend through the Backend interface.
 *
 * @dependencies
 * - internal/domain: canonical models and pure rules (fee, status, role, action).
 * - internal/store: device-local key-value persistence.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/econfirmclient"
)

var (
	ErrNoDraft           = errors.New("no transaction in progress")
	ErrNoCheckoutRequest = errors.New("no checkout request to poll")
	ErrStaleResponse     = errors.New("response belongs to a superseded request")
	ErrResendNotAllowed  = errors.New("otp resend is not available yet")
	ErrIncompleteOTP     = errors.New("otp must have 6 digits")
	ErrActionNotAllowed  = errors.New("action is not offered for this transaction")
	ErrNoTransaction     = errors.New("no transaction loaded")
	ErrBusy              = errors.New("a request is already in flight")
	ErrWrongStep         = errors.New("operation not valid in the current step")
)

// Backend is the subset of the eConfirm REST client used by the app.
type Backend interface {
	TransactionTypes(ctx context.Context) ([]domain.TransactionType, error)
	CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error)
	InitiatePayment(ctx context.Context, transactionID string) (*domain.PaymentInitiation, error)
	CheckPaymentStatus(ctx context.Context, checkoutRequestID string) (*domain.PaymentStatus, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	SearchTransactions(ctx context.Context, reference string) ([]domain.Transaction, error)
	ReleasePayment(ctx context.Context, transactionID string) (string, error)
	RequestRelease(ctx context.Context, transactionID string) (string, error)
	SubmitComplaint(ctx context.Context, complaint domain.Complaint) (string, error)
	SendOTP(ctx context.Context, phone string) (string, error)
	VerifyOTP(ctx context.Context, phone, otp string) (*domain.UserProfile, string, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.UserProfile, string, error)
}

// EventPublisher receives analytics events. Implementations must not block for long.
type EventPublisher interface {
	PublishClientEvent(ctx context.Context, event domain.ClientEvent) error
}

// ValidationErrors maps a field name to its inline error message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) clone() ValidationErrors {
	out := make(ValidationErrors, len(v))
	for k, msg := range v {
		out[k] = msg
	}
	return out
}

// AsValidationErrors extracts field errors from err, if any.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// publishEvent sends an analytics event without letting failures reach the user flow.
func publishEvent(ctx context.Context, events EventPublisher, logger *slog.Logger, event domain.ClientEvent) {
	if events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := events.PublishClientEvent(ctx, event); err != nil {
		logger.Warn("failed to publish client event", "event", event.Name, "err", err)
	}
}

// userMessage is the banner text for a failed backend call.
func userMessage(err error) string {
	return econfirmclient.UserMessage(err)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
