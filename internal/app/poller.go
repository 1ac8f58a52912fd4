package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

const (
	MessagePaymentPending   = "Waiting for payment confirmation..."
	MessagePaymentCompleted = "Payment successful! Funds are now in escrow."
	MessagePaymentFailed    = "Payment failed or was cancelled."
	MessagePaymentTimeout   = "Payment confirmation timed out. Please check your transaction status later."
)

// PollView is the payment status screen.
type PollView struct {
	CheckoutRequestID string              `json:"checkout_request_id"`
	Status            domain.PaymentState `json:"status"`
	Message           string              `json:"message"`
	Loading           bool                `json:"loading"`
	TimedOut          bool                `json:"timed_out"`
	Attempts          int                 `json:"attempts"`
	Active            bool                `json:"active"`
}

// Settled reports whether polling reached a terminal status or gave up.
func (v PollView) Settled() bool {
	return v.Status != domain.PaymentPending || v.TimedOut
}

// StatusPoller polls a checkout request immediately and then on every interval until
// a terminal status, the soft timeout, or Exit.
type StatusPoller struct {
	mu       sync.Mutex
	backend  Backend
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	events   EventPublisher
	logger   *slog.Logger

	generation uint64
	cancel     context.CancelFunc
	startedAt  time.Time
	view       PollView
}

func NewStatusPoller(backend Backend, clock Clock, interval, timeout time.Duration, events EventPublisher, logger *slog.Logger) *StatusPoller {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &StatusPoller{
		backend:  backend,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		events:   events,
		logger:   loggerOrDefault(logger).With("component", "status_poller"),
		view:     PollView{Status: domain.PaymentPending},
	}
}

// Enter starts polling from scratch. Re-entering with the same id does not resume
// elapsed time.
func (p *StatusPoller) Enter(checkoutRequestID string) (PollView, error) {
	if checkoutRequestID == "" {
		return PollView{}, ErrNoCheckoutRequest
	}

	p.mu.Lock()
	p.stopLocked()
	p.generation++
	generation := p.generation
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.startedAt = p.clock.Now()
	p.view = PollView{
		CheckoutRequestID: checkoutRequestID,
		Status:            domain.PaymentPending,
		Message:           MessagePaymentPending,
		Loading:           true,
		Active:            true,
	}
	ticker := p.clock.NewTicker(p.interval)
	view := p.view
	p.mu.Unlock()

	p.logger.Info("payment status polling started", "checkout_request_id", checkoutRequestID)
	go p.run(ctx, generation, checkoutRequestID, ticker)
	return view, nil
}

// Exit tears down the loop. Responses still in flight are discarded.
func (p *StatusPoller) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.generation++
	p.view.Active = false
	p.view.Loading = false
}

func (p *StatusPoller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// View returns the current status screen state.
func (p *StatusPoller) View() PollView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *StatusPoller) run(ctx context.Context, generation uint64, checkoutRequestID string, ticker Ticker) {
	defer ticker.Stop()

	if p.poll(ctx, generation, checkoutRequestID) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if p.expire(generation) {
				return
			}
			if p.poll(ctx, generation, checkoutRequestID) {
				return
			}
		}
	}
}

// expire applies the soft timeout: polling stops but the status stays pending.
func (p *StatusPoller) expire(generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation {
		return true
	}
	if p.clock.Now().Sub(p.startedAt) < p.timeout {
		return false
	}
	p.view.TimedOut = true
	p.view.Loading = false
	p.view.Active = false
	p.view.Message = MessagePaymentTimeout
	p.stopLocked()
	p.logger.Info("payment status polling timed out", "checkout_request_id", p.view.CheckoutRequestID, "attempts", p.view.Attempts)
	return true
}

// poll performs one status check and reports whether the loop should stop.
func (p *StatusPoller) poll(ctx context.Context, generation uint64, checkoutRequestID string) bool {
	status, err := p.backend.CheckPaymentStatus(ctx, checkoutRequestID)

	p.mu.Lock()
	if generation != p.generation {
		p.mu.Unlock()
		return true
	}
	p.view.Attempts++
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("payment status check failed; will retry", "checkout_request_id", checkoutRequestID, "err", err)
		return false
	}

	var eventName string
	switch status.State {
	case domain.PaymentCompleted:
		p.finishLocked(domain.PaymentCompleted, status.Message, MessagePaymentCompleted)
		eventName = domain.EventPaymentCompleted
	case domain.PaymentFailed:
		p.finishLocked(domain.PaymentFailed, status.Message, MessagePaymentFailed)
		eventName = domain.EventPaymentFailed
	default:
		p.view.Status = domain.PaymentPending
		p.view.Message = messageOrDefault(status.Message, MessagePaymentPending)
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	p.logger.Info("payment reached terminal status", "checkout_request_id", checkoutRequestID, "status", status.State)
	// The loop context is already cancelled here.
	publishEvent(context.Background(), p.events, p.logger, domain.ClientEvent{
		Name:              eventName,
		CheckoutRequestID: checkoutRequestID,
		Status:            string(status.State),
	})
	return true
}

func (p *StatusPoller) finishLocked(state domain.PaymentState, serverMessage, fallback string) {
	p.view.Status = state
	p.view.Message = messageOrDefault(serverMessage, fallback)
	p.view.Loading = false
	p.view.Active = false
	p.stopLocked()
}

func messageOrDefault(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
