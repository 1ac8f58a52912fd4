package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/econfirmclient"
	"github.com/shopspring/decimal"
)

func fillValidWizard(t *testing.T, w *Wizard, ctx context.Context) {
	t.Helper()
	steps := []map[string]string{
		{FieldRecipientType: "mobile", FieldRecipientMobile: "+254712345678"},
		{FieldAmount: "1050"},
		{FieldTransactionType: "goods_services", FieldConditions: "Deliver by Friday"},
	}
	for i, fields := range steps {
		if err := w.SetFields(fields); err != nil {
			t.Fatalf("step %d: SetFields: %v", i+1, err)
		}
		res, err := w.Next(ctx)
		if err != nil {
			t.Fatalf("step %d: Next: %v", i+1, err)
		}
		if !res.Advanced {
			t.Fatalf("step %d: expected to advance", i+1)
		}
	}
	if err := w.SetField(FieldSenderMobile, "+254700000001"); err != nil {
		t.Fatalf("SetField sender: %v", err)
	}
}

func TestWizard_InvalidRecipientDoesNotAdvance(t *testing.T) {
	w := NewWizard(&backendStub{}, NewAppState(&backendStub{}, testLogger()), nil, nil, testLogger())

	if err := w.SetField(FieldRecipientMobile, "0712"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	_, err := w.Next(context.Background())
	verrs, ok := AsValidationErrors(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if verrs[FieldRecipientMobile] != "Valid mobile number required (+254...)" {
		t.Fatalf("unexpected message: %q", verrs[FieldRecipientMobile])
	}

	view := w.View()
	if view.Step != StepRecipient {
		t.Fatalf("expected step %d, got %d", StepRecipient, view.Step)
	}
	if view.Errors[FieldRecipientMobile] == "" {
		t.Fatalf("expected inline error on the view")
	}

	if err := w.SetField(FieldRecipientMobile, "+254712345678"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, ok := w.View().Errors[FieldRecipientMobile]; ok {
		t.Fatalf("editing the field should clear its error")
	}
}

func TestWizard_PaybillRequiresBothFields(t *testing.T) {
	w := NewWizard(&backendStub{}, nil, nil, nil, testLogger())
	if err := w.SetFields(map[string]string{FieldRecipientType: "paybill", FieldPaybillNumber: "522522"}); err != nil {
		t.Fatalf("SetFields: %v", err)
	}
	_, err := w.Next(context.Background())
	verrs, ok := AsValidationErrors(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if _, ok := verrs[FieldAccountNumber]; !ok {
		t.Fatalf("expected account number error, got %v", verrs)
	}
	if _, ok := verrs[FieldPaybillNumber]; ok {
		t.Fatalf("paybill number was provided, got %v", verrs)
	}
}

func TestWizard_AmountAndTypeValidation(t *testing.T) {
	w := NewWizard(&backendStub{}, NewAppState(&backendStub{}, testLogger()), nil, nil, testLogger())
	ctx := context.Background()
	_ = w.SetField(FieldRecipientMobile, "254712345678")
	if _, err := w.Next(ctx); err != nil {
		t.Fatalf("step 1: %v", err)
	}

	for _, amount := range []string{"", "abc", "0", "-5"} {
		_ = w.SetField(FieldAmount, amount)
		if _, err := w.Next(ctx); err == nil {
			t.Fatalf("amount %q should be rejected", amount)
		}
	}
	_ = w.SetField(FieldAmount, "100")
	if _, err := w.Next(ctx); err != nil {
		t.Fatalf("step 2: %v", err)
	}

	_ = w.SetField(FieldTransactionType, "spaceship")
	_, err := w.Next(ctx)
	verrs, ok := AsValidationErrors(err)
	if !ok || verrs[FieldTransactionType] == "" {
		t.Fatalf("expected transaction type error, got %v", err)
	}
	if w.View().Step != StepType {
		t.Fatalf("expected to stay on step %d", StepType)
	}
}

func TestWizard_SubmitCallsCreateOnceWithFee(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []domain.CreateTransactionRequest
	)
	backend := &backendStub{
		createTransaction: func(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
			mu.Lock()
			calls = append(calls, req)
			mu.Unlock()
			return &domain.Transaction{ID: "42", Reference: "EC-42", Status: "Pending"}, nil
		},
	}
	state := NewAppState(backend, testLogger())
	events := &eventRecorder{}
	w := NewWizard(backend, state, nil, events, testLogger())
	ctx := context.Background()

	fillValidWizard(t, w, ctx)
	view := w.View()
	if view.Fee != "11" || view.Total != "1061" {
		t.Fatalf("expected fee 11 and total 1061, got %s and %s", view.Fee, view.Total)
	}

	res, err := w.Next(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Submitted || res.Transaction == nil {
		t.Fatalf("expected a submitted transaction, got %+v", res)
	}

	if len(calls) != 1 {
		t.Fatalf("expected exactly one create call, got %d", len(calls))
	}
	req := calls[0]
	if !req.Fee.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("expected fee 11, got %s", req.Fee)
	}
	if !req.Amount.Equal(decimal.NewFromInt(1050)) {
		t.Fatalf("expected amount 1050, got %s", req.Amount)
	}
	if req.RecipientMobile != "+254712345678" || req.PaybillNumber != "" {
		t.Fatalf("unexpected recipient fields: %+v", req)
	}

	draft, ok := state.Draft()
	if !ok {
		t.Fatalf("expected a draft after submit")
	}
	if draft.ID != "42" || draft.Reference != "EC-42" {
		t.Fatalf("draft did not take server values: %+v", draft)
	}
	if !draft.Total().Equal(decimal.NewFromInt(1061)) {
		t.Fatalf("expected draft total 1061, got %s", draft.Total())
	}

	names := events.names()
	if len(names) != 1 || names[0] != domain.EventTransactionCreated {
		t.Fatalf("unexpected events: %v", names)
	}
}

type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) PublishClientEvent(ctx context.Context, event domain.ClientEvent) error {
	close(b.started)
	<-b.release
	return nil
}

func TestWizard_SlowPublishDoesNotBlockView(t *testing.T) {
	backend := &backendStub{
		createTransaction: func(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
			return &domain.Transaction{ID: "42", Status: "Pending"}, nil
		},
	}
	events := &blockingPublisher{started: make(chan struct{}), release: make(chan struct{})}
	w := NewWizard(backend, NewAppState(backend, testLogger()), nil, events, testLogger())
	ctx := context.Background()
	fillValidWizard(t, w, ctx)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(ctx)
		done <- err
	}()
	<-events.started

	viewed := make(chan WizardView, 1)
	go func() { viewed <- w.View() }()
	select {
	case view := <-viewed:
		if view.Transaction == nil || view.Transaction.ID != "42" {
			t.Fatalf("view should show the created transaction: %+v", view)
		}
	case <-time.After(time.Second):
		t.Fatalf("View blocked while the event was publishing")
	}

	close(events.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestWizard_SubmitFailureShowsBanner(t *testing.T) {
	backend := &backendStub{
		createTransaction: func(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
			return nil, &econfirmclient.APIError{Kind: econfirmclient.KindServer, StatusCode: 422, Message: "Sender mobile is blocked"}
		},
	}
	state := NewAppState(backend, testLogger())
	w := NewWizard(backend, state, nil, nil, testLogger())
	ctx := context.Background()
	fillValidWizard(t, w, ctx)

	if _, err := w.Next(ctx); err == nil {
		t.Fatalf("expected submit error")
	}
	view := w.View()
	if view.Banner != "Sender mobile is blocked" {
		t.Fatalf("unexpected banner: %q", view.Banner)
	}
	if view.Step != StepReview || view.Submitting {
		t.Fatalf("expected to stay on review, not submitting: %+v", view)
	}
	if _, ok := state.Draft(); ok {
		t.Fatalf("no draft should be stored on failure")
	}

	w.DismissBanner()
	if w.View().Banner != "" {
		t.Fatalf("banner should be dismissed")
	}
}

func TestWizard_StaleCreateResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	backend := &backendStub{
		createTransaction: func(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
			close(started)
			<-release
			return &domain.Transaction{ID: "old"}, nil
		},
	}
	state := NewAppState(backend, testLogger())
	w := NewWizard(backend, state, nil, nil, testLogger())
	ctx := context.Background()
	fillValidWizard(t, w, ctx)

	errc := make(chan error, 1)
	go func() {
		_, err := w.Submit(ctx)
		errc <- err
	}()
	<-started
	w.Start()
	close(release)

	if err := <-errc; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("expected ErrStaleResponse, got %v", err)
	}
	if _, ok := state.Draft(); ok {
		t.Fatalf("stale response must not become the draft")
	}
	if w.View().Step != StepRecipient {
		t.Fatalf("restarted wizard should be on the first step")
	}
}

func TestWizard_BackAndStart(t *testing.T) {
	session := NewSession(newMemStore(), &backendStub{}, testLogger())
	if err := session.CompleteVerification(context.Background(), "+254700000009", domain.UserProfile{Name: "Jane"}); err != nil {
		t.Fatalf("CompleteVerification: %v", err)
	}
	w := NewWizard(&backendStub{}, nil, session, nil, testLogger())
	view := w.Start()
	if view.Form.SenderMobile != "+254700000009" {
		t.Fatalf("sender should default to the verified phone, got %q", view.Form.SenderMobile)
	}
	firstID := view.ID

	if exit := w.Back(); !exit {
		t.Fatalf("Back on the first step should exit")
	}

	_ = w.SetField(FieldRecipientMobile, "+254712345678")
	if _, err := w.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if exit := w.Back(); exit {
		t.Fatalf("Back on step 2 should not exit")
	}
	if w.View().Step != StepRecipient {
		t.Fatalf("expected step 1 after Back")
	}
	if w.View().Form.RecipientMobile != "+254712345678" {
		t.Fatalf("Back must keep form values")
	}

	if w.Start().ID == firstID {
		t.Fatalf("Start should assign a new wizard id")
	}
}

func TestWizard_LeavingDiscardsDraft(t *testing.T) {
	state := NewAppState(&backendStub{}, testLogger())
	w := NewWizard(&backendStub{}, state, nil, nil, testLogger())

	state.SetDraft(domain.Transaction{ID: "1"})
	w.Start()
	if _, ok := state.Draft(); ok {
		t.Fatalf("starting a new wizard should discard the old draft")
	}

	_ = w.SetField(FieldRecipientMobile, "+254712345678")
	state.SetDraft(domain.Transaction{ID: "2"})
	if exit := w.Back(); !exit {
		t.Fatalf("Back on the first step should exit")
	}
	if _, ok := state.Draft(); ok {
		t.Fatalf("exiting the wizard should discard the draft")
	}
	if w.View().Form.RecipientMobile != "" {
		t.Fatalf("exiting the wizard should reset the form")
	}

	state.SetDraft(domain.Transaction{ID: "3"})
	flow := NewPaymentFlow(&backendStub{}, state, nil, testLogger())
	flow.Leave()
	if _, err := flow.Initiate(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("payment after leaving should have no draft, got %v", err)
	}
}

func TestWizard_UnknownField(t *testing.T) {
	w := NewWizard(&backendStub{}, nil, nil, nil, testLogger())
	if err := w.SetField("colour", "red"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if err := w.SetField(FieldRecipientType, "bank"); err == nil {
		t.Fatalf("expected error for unknown recipient type")
	}
}

func TestPaymentFlow_Initiate(t *testing.T) {
	backend := &backendStub{
		initiatePayment: func(ctx context.Context, id string) (*domain.PaymentInitiation, error) {
			if id != "42" {
				t.Errorf("unexpected transaction id %q", id)
			}
			return &domain.PaymentInitiation{CheckoutRequestID: "ws_CO_1", Status: "Payment Initiated"}, nil
		},
	}
	state := NewAppState(backend, testLogger())
	events := &eventRecorder{}
	flow := NewPaymentFlow(backend, state, events, testLogger())

	if _, err := flow.Initiate(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}

	state.SetDraft(domain.Transaction{ID: "42", Amount: decimal.NewFromInt(1000), Fee: decimal.NewFromInt(10), Status: "Pending"})
	initiation, err := flow.Initiate(context.Background())
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if initiation.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected checkout id %q", initiation.CheckoutRequestID)
	}
	draft, _ := state.Draft()
	if draft.CheckoutRequestID != "ws_CO_1" || draft.Status != "Payment Initiated" {
		t.Fatalf("draft not updated: %+v", draft)
	}
	if flow.View().Total != "1010" {
		t.Fatalf("unexpected total %q", flow.View().Total)
	}
	if names := events.names(); len(names) != 1 || names[0] != domain.EventPaymentInitiated {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestPaymentFlow_InitiateFailureKeepsDraft(t *testing.T) {
	backend := &backendStub{
		initiatePayment: func(ctx context.Context, id string) (*domain.PaymentInitiation, error) {
			return nil, &econfirmclient.APIError{Kind: econfirmclient.KindTransport, Message: econfirmclient.ConnectFailureMessage}
		},
	}
	state := NewAppState(backend, testLogger())
	state.SetDraft(domain.Transaction{ID: "42", Status: "Pending"})
	flow := NewPaymentFlow(backend, state, nil, testLogger())

	if _, err := flow.Initiate(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	draft, _ := state.Draft()
	if draft.CheckoutRequestID != "" || draft.Status != "Pending" {
		t.Fatalf("draft should be untouched: %+v", draft)
	}
	if flow.View().Error != econfirmclient.ConnectFailureMessage {
		t.Fatalf("unexpected error message %q", flow.View().Error)
	}
}
