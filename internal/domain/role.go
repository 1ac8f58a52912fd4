package domain

import (
	"strings"
	"time"
	"unicode"
)

// Role is the session holder's relationship to a transaction.
type Role string

const (
	RoleNone   Role = ""
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Action is the single escrow action offered on the detail screen.
type Action string

const (
	ActionNone            Action = ""
	ActionContinuePayment Action = "continue_payment"
	ActionReleasePayment  Action = "release_payment"
	ActionRequestRelease  Action = "request_release"
)

// Label is the button caption shown for the action.
func (a Action) Label() string {
	switch a {
	case ActionContinuePayment:
		return "Continue Payment"
	case ActionReleasePayment:
		return "Release Payment"
	case ActionRequestRelease:
		return "Request Release"
	default:
		return ""
	}
}

// NormalizePhone strips all whitespace and one leading '+' so that
// "+254 712 345 678" and "254712345678" compare equal.
func NormalizePhone(phone string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
	return strings.TrimPrefix(stripped, "+")
}

// ResolveRole compares the session phone against the transaction parties.
// The sender is the buyer; the receiver is the seller.
func ResolveRole(tx *Transaction, sessionPhone string) Role {
	if tx == nil {
		return RoleNone
	}
	me := NormalizePhone(sessionPhone)
	if me == "" {
		return RoleNone
	}
	if me == NormalizePhone(tx.SenderMobile) {
		return RoleBuyer
	}
	if receiver := NormalizePhone(tx.ReceiverMobile()); receiver != "" && me == receiver {
		return RoleSeller
	}
	return RoleNone
}

// ResolveAction evaluates the action table in order; the first matching row wins.
func ResolveAction(tx *Transaction, role Role) Action {
	if tx == nil || role == RoleNone {
		return ActionNone
	}
	flags := tx.Flags()

	switch {
	case flags.IsPending && role == RoleBuyer && tx.CheckoutRequestID == "":
		return ActionContinuePayment
	case flags.IsFunded && !flags.IsCompleted && role == RoleBuyer:
		return ActionReleasePayment
	case flags.IsFunded && !flags.IsCompleted && role == RoleSeller:
		return ActionRequestRelease
	default:
		return ActionNone
	}
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
