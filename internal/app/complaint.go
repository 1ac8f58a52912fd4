package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
)

// ComplaintForm is the complaint screen input.
type ComplaintForm struct {
	TransactionReference string `json:"transaction_reference"`
	Name                 string `json:"name"`
	Comment              string `json:"comment"`
}

// Complaints submits support complaints and remembers the submitter's name.
type Complaints struct {
	backend Backend
	store   store.KeyValueStore
	events  EventPublisher
	logger  *slog.Logger
}

func NewComplaints(backend Backend, kv store.KeyValueStore, events EventPublisher, logger *slog.Logger) *Complaints {
	return &Complaints{
		backend: backend,
		store:   kv,
		events:  events,
		logger:  loggerOrDefault(logger).With("component", "complaints"),
	}
}

// Prefill returns an empty form carrying the last used name.
func (c *Complaints) Prefill(ctx context.Context) ComplaintForm {
	name, err := c.store.Get(ctx, domain.KeyUserName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("failed to load user name", "err", err)
	}
	return ComplaintForm{Name: name}
}

// Submit validates and files the complaint. The name is persisted before the call.
// On success the returned form keeps the name and clears everything else.
func (c *Complaints) Submit(ctx context.Context, form ComplaintForm) (ComplaintForm, string, error) {
	complaint := domain.Complaint{
		TransactionReference: strings.TrimSpace(form.TransactionReference),
		Name:                 strings.TrimSpace(form.Name),
		Comment:              strings.TrimSpace(form.Comment),
	}

	errs := ValidationErrors{}
	if complaint.TransactionReference == "" {
		errs["transaction_reference"] = "Transaction reference required"
	}
	if complaint.Name == "" {
		errs["name"] = "Your name is required"
	}
	if complaint.Comment == "" {
		errs["comment"] = "Please describe your complaint"
	}
	if len(errs) > 0 {
		return form, "", errs
	}

	if err := c.store.Set(ctx, domain.KeyUserName, complaint.Name); err != nil {
		return form, "", fmt.Errorf("failed to persist user name: %w", err)
	}

	message, err := c.backend.SubmitComplaint(ctx, complaint)
	if err != nil {
		c.logger.Warn("complaint submission failed", "reference", complaint.TransactionReference, "err", err)
		return form, "", err
	}

	publishEvent(ctx, c.events, c.logger, domain.ClientEvent{
		Name:      domain.EventComplaintSubmitted,
		Reference: complaint.TransactionReference,
	})
	return ComplaintForm{Name: complaint.Name}, message, nil
}
