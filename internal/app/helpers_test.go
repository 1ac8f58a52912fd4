package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backendStub implements Backend through optional function fields. Calling a method
// whose field is nil panics through the embedded nil interface.
type backendStub struct {
	Backend

	transactionTypes   func(ctx context.Context) ([]domain.TransactionType, error)
	createTransaction  func(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error)
	initiatePayment    func(ctx context.Context, id string) (*domain.PaymentInitiation, error)
	checkPaymentStatus func(ctx context.Context, checkoutID string) (*domain.PaymentStatus, error)
	getTransaction     func(ctx context.Context, id string) (*domain.Transaction, error)
	searchTransactions func(ctx context.Context, reference string) ([]domain.Transaction, error)
	releasePayment     func(ctx context.Context, id string) (string, error)
	requestRelease     func(ctx context.Context, id string) (string, error)
	submitComplaint    func(ctx context.Context, c domain.Complaint) (string, error)
	sendOTP            func(ctx context.Context, phone string) (string, error)
	verifyOTP          func(ctx context.Context, phone, otp string) (*domain.UserProfile, string, error)
	updateProfile      func(ctx context.Context, u domain.ProfileUpdate) (*domain.UserProfile, string, error)
}

func (s *backendStub) TransactionTypes(ctx context.Context) ([]domain.TransactionType, error) {
	if s.transactionTypes == nil {
		return s.Backend.TransactionTypes(ctx)
	}
	return s.transactionTypes(ctx)
}

func (s *backendStub) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	if s.createTransaction == nil {
		return s.Backend.CreateTransaction(ctx, req)
	}
	return s.createTransaction(ctx, req)
}

func (s *backendStub) InitiatePayment(ctx context.Context, id string) (*domain.PaymentInitiation, error) {
	if s.initiatePayment == nil {
		return s.Backend.InitiatePayment(ctx, id)
	}
	return s.initiatePayment(ctx, id)
}

func (s *backendStub) CheckPaymentStatus(ctx context.Context, checkoutID string) (*domain.PaymentStatus, error) {
	if s.checkPaymentStatus == nil {
		return s.Backend.CheckPaymentStatus(ctx, checkoutID)
	}
	return s.checkPaymentStatus(ctx, checkoutID)
}

func (s *backendStub) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if s.getTransaction == nil {
		return s.Backend.GetTransaction(ctx, id)
	}
	return s.getTransaction(ctx, id)
}

func (s *backendStub) SearchTransactions(ctx context.Context, reference string) ([]domain.Transaction, error) {
	if s.searchTransactions == nil {
		return s.Backend.SearchTransactions(ctx, reference)
	}
	return s.searchTransactions(ctx, reference)
}

func (s *backendStub) ReleasePayment(ctx context.Context, id string) (string, error) {
	if s.releasePayment == nil {
		return s.Backend.ReleasePayment(ctx, id)
	}
	return s.releasePayment(ctx, id)
}

func (s *backendStub) RequestRelease(ctx context.Context, id string) (string, error) {
	if s.requestRelease == nil {
		return s.Backend.RequestRelease(ctx, id)
	}
	return s.requestRelease(ctx, id)
}

func (s *backendStub) SubmitComplaint(ctx context.Context, c domain.Complaint) (string, error) {
	if s.submitComplaint == nil {
		return s.Backend.SubmitComplaint(ctx, c)
	}
	return s.submitComplaint(ctx, c)
}

func (s *backendStub) SendOTP(ctx context.Context, phone string) (string, error) {
	if s.sendOTP == nil {
		return s.Backend.SendOTP(ctx, phone)
	}
	return s.sendOTP(ctx, phone)
}

func (s *backendStub) VerifyOTP(ctx context.Context, phone, otp string) (*domain.UserProfile, string, error) {
	if s.verifyOTP == nil {
		return s.Backend.VerifyOTP(ctx, phone, otp)
	}
	return s.verifyOTP(ctx, phone, otp)
}

func (s *backendStub) UpdateProfile(ctx context.Context, u domain.ProfileUpdate) (*domain.UserProfile, string, error) {
	if s.updateProfile == nil {
		return s.Backend.UpdateProfile(ctx, u)
	}
	return s.updateProfile(ctx, u)
}

// memStore is an in-memory KeyValueStore.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemStore() *memStore {
	return &memStore{values: map[string]string{}}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memStore) Close() error { return nil }

// eventRecorder captures published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.ClientEvent
}

func (r *eventRecorder) PublishClientEvent(ctx context.Context, event domain.ClientEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

// fakeClock only moves when Advance is called.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time), period: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and delivers every tick that became due. Each delivery
// waits until the receiving loop is back in its select, so the previous tick has been
// fully processed when the next is sent.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		for !t.isStopped() && !t.next.After(now) {
			t.next = t.next.Add(t.period)
			select {
			case t.ch <- now:
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
