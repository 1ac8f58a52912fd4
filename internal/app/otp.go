package app

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

// OTPLength is the number of digit slots.
const OTPLength = 6

// OTPStep is the verification screen state.
type OTPStep string

const (
	OTPStepPhone OTPStep = "phone"
	OTPStepCode  OTPStep = "otp"
)

// OTPView is the verification screen.
type OTPView struct {
	Step      OTPStep           `json:"step"`
	Phone     string            `json:"phone_number"`
	Digits    [OTPLength]string `json:"digits"`
	Focus     int               `json:"focus"`
	Countdown int               `json:"countdown"`
	CanResend bool              `json:"can_resend"`
	Error     string            `json:"error,omitempty"`
	Message   string            `json:"message,omitempty"`
	Loading   bool              `json:"loading"`
}

// OTPSession drives phone verification: phone entry, a six-slot code, and a resend
// countdown ticking once per second on the injected clock.
type OTPSession struct {
	mu          sync.Mutex
	backend     Backend
	session     *Session
	clock       Clock
	resendDelay int
	logger      *slog.Logger

	step      OTPStep
	phone     string
	digits    [OTPLength]string
	focus     int
	countdown int
	errMsg    string
	message   string
	loading   bool

	countdownGen  uint64
	stopCountdown context.CancelFunc
}

func NewOTPSession(backend Backend, session *Session, clock Clock, resendDelay time.Duration, logger *slog.Logger) *OTPSession {
	if clock == nil {
		clock = SystemClock{}
	}
	seconds := int(resendDelay / time.Second)
	if seconds <= 0 {
		seconds = 60
	}
	return &OTPSession{
		backend:     backend,
		session:     session,
		clock:       clock,
		resendDelay: seconds,
		logger:      loggerOrDefault(logger).With("component", "otp"),
		step:        OTPStepPhone,
	}
}

// View returns the current screen state. CanResend is true exactly when the
// countdown is zero.
func (o *OTPSession) View() OTPView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OTPView{
		Step:      o.step,
		Phone:     o.phone,
		Digits:    o.digits,
		Focus:     o.focus,
		Countdown: o.countdown,
		CanResend: o.countdown == 0,
		Error:     o.errMsg,
		Message:   o.message,
		Loading:   o.loading,
	}
}

// SetPhone records the number being verified.
func (o *OTPSession) SetPhone(phone string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phone = strings.TrimSpace(phone)
	o.errMsg = ""
}

// SendOTP validates the phone locally and asks the backend for a code. On success the
// screen moves to the code step and the resend countdown starts.
func (o *OTPSession) SendOTP(ctx context.Context) (OTPView, error) {
	o.mu.Lock()
	phone := o.phone
	if !domain.ValidMSISDN(phone) {
		o.errMsg = "Please enter a valid Kenyan phone number (+254...)"
		o.mu.Unlock()
		return o.View(), ValidationErrors{"phone_number": "Please enter a valid Kenyan phone number (+254...)"}
	}
	if o.loading {
		o.mu.Unlock()
		return o.View(), ErrBusy
	}
	o.loading = true
	o.errMsg = ""
	o.mu.Unlock()

	message, err := o.backend.SendOTP(ctx, phone)

	o.mu.Lock()
	o.loading = false
	if err != nil {
		o.errMsg = userMessage(err)
		o.mu.Unlock()
		o.logger.Warn("send otp failed", "err", err)
		return o.View(), err
	}
	o.step = OTPStepCode
	o.message = message
	o.startCountdownLocked()
	o.mu.Unlock()
	return o.View(), nil
}

// Resend is only allowed once the countdown has reached zero. It restarts the
// countdown and sends a new code.
func (o *OTPSession) Resend(ctx context.Context) (OTPView, error) {
	o.mu.Lock()
	if o.step != OTPStepCode {
		o.mu.Unlock()
		return o.View(), ErrWrongStep
	}
	if o.countdown > 0 {
		o.mu.Unlock()
		return o.View(), ErrResendNotAllowed
	}
	o.startCountdownLocked()
	o.mu.Unlock()
	return o.SendOTP(ctx)
}

func (o *OTPSession) startCountdownLocked() {
	o.stopCountdownLocked()
	o.countdown = o.resendDelay
	o.countdownGen++
	generation := o.countdownGen
	ctx, cancel := context.WithCancel(context.Background())
	o.stopCountdown = cancel
	ticker := o.clock.NewTicker(time.Second)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if o.tick(generation) {
					return
				}
			}
		}
	}()
}

func (o *OTPSession) stopCountdownLocked() {
	if o.stopCountdown != nil {
		o.stopCountdown()
		o.stopCountdown = nil
	}
}

// Tick decrements the countdown by one second. It reports whether the countdown
// has reached zero.
func (o *OTPSession) Tick() bool {
	o.mu.Lock()
	generation := o.countdownGen
	o.mu.Unlock()
	return o.tick(generation)
}

func (o *OTPSession) tick(generation uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if generation != o.countdownGen {
		return true
	}
	if o.countdown > 0 {
		o.countdown--
	}
	return o.countdown == 0
}

// SetDigit writes value into slot index. A multi-character value is treated as a
// paste: non-digits are dropped, and the rest is truncated to six digits and spread
// over the following slots. A single non-digit is rejected.
func (o *OTPSession) SetDigit(index int, value string) (OTPView, error) {
	if index < 0 || index >= OTPLength {
		return o.View(), ValidationErrors{"otp": "Invalid digit position"}
	}
	pasted := len([]rune(value)) > 1
	digits := onlyDigits(value)
	if (pasted && digits == "") || (!pasted && digits != value) {
		return o.View(), ValidationErrors{"otp": "Only digits are allowed"}
	}

	o.mu.Lock()
	switch {
	case pasted:
		if len(digits) > OTPLength {
			digits = digits[:OTPLength]
		}
		last := index
		for i, c := range digits {
			slot := index + i
			if slot >= OTPLength {
				break
			}
			o.digits[slot] = string(c)
			last = slot
		}
		o.focus = last
	case digits != "":
		o.digits[index] = digits
		if index < OTPLength-1 {
			o.focus = index + 1
		} else {
			o.focus = index
		}
	default:
		o.digits[index] = ""
		o.focus = index
	}
	o.errMsg = ""
	o.mu.Unlock()
	return o.View(), nil
}

func onlyDigits(value string) string {
	var b strings.Builder
	for _, c := range value {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// Backspace moves focus back when the focused slot is already empty.
func (o *OTPSession) Backspace(index int) OTPView {
	o.mu.Lock()
	if index >= 0 && index < OTPLength {
		if o.digits[index] == "" && index > 0 {
			o.focus = index - 1
		} else {
			o.digits[index] = ""
			o.focus = index
		}
	}
	o.mu.Unlock()
	return o.View()
}

// Verify submits the six digits. Failure clears every slot and stays on the code step;
// success authenticates the session.
func (o *OTPSession) Verify(ctx context.Context) (OTPView, error) {
	o.mu.Lock()
	if o.step != OTPStepCode {
		o.mu.Unlock()
		return o.View(), ErrWrongStep
	}
	complete := true
	for _, d := range o.digits {
		if len(d) != 1 || d[0] < '0' || d[0] > '9' {
			complete = false
		}
	}
	code := strings.Join(o.digits[:], "")
	if !complete {
		o.errMsg = "Please enter the complete 6-digit OTP"
		o.mu.Unlock()
		return o.View(), ErrIncompleteOTP
	}
	if o.loading {
		o.mu.Unlock()
		return o.View(), ErrBusy
	}
	phone := o.phone
	o.loading = true
	o.errMsg = ""
	o.mu.Unlock()

	profile, message, err := o.backend.VerifyOTP(ctx, phone, code)

	o.mu.Lock()
	o.loading = false
	o.digits = [OTPLength]string{}
	o.focus = 0
	if err != nil {
		o.errMsg = userMessage(err)
		o.mu.Unlock()
		o.logger.Warn("otp verification failed", "err", err)
		return o.View(), err
	}
	o.message = message
	o.stopCountdownLocked()
	o.mu.Unlock()

	if o.session != nil && profile != nil {
		if err := o.session.CompleteVerification(ctx, phone, *profile); err != nil {
			return o.View(), err
		}
	}
	return o.View(), nil
}

// ChangePhone returns to phone entry and clears the code and any error.
func (o *OTPSession) ChangePhone() OTPView {
	o.mu.Lock()
	o.stopCountdownLocked()
	o.countdownGen++
	o.step = OTPStepPhone
	o.digits = [OTPLength]string{}
	o.focus = 0
	o.countdown = 0
	o.errMsg = ""
	o.message = ""
	o.mu.Unlock()
	return o.View()
}

// Exit stops the countdown when the screen goes away. The next visit starts from
// phone entry with the number kept, so resend is never left stuck behind a frozen
// countdown.
func (o *OTPSession) Exit() {
	o.ChangePhone()
}
