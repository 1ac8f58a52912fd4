package domain

import "time"

// Local storage keys, matching the names the mobile app persists.
const (
	KeyThemePreference = "theme_preference"
	KeyUserData        = "user_data"
	KeyUserPhone       = "user_phone"
	KeyUserName        = "user_name"
)

// Theme values persisted under KeyThemePreference.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// UserProfile is the authenticated user as returned by verify-otp and update-profile.
type UserProfile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IDNumber string `json:"id_number,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Merge overlays the non-empty fields of update onto p.
func (p UserProfile) Merge(update UserProfile) UserProfile {
	if update.ID != "" {
		p.ID = update.ID
	}
	if update.Name != "" {
		p.Name = update.Name
	}
	if update.Email != "" {
		p.Email = update.Email
	}
	if update.Phone != "" {
		p.Phone = update.Phone
	}
	if update.IDNumber != "" {
		p.IDNumber = update.IDNumber
	}
	if update.Address != "" {
		p.Address = update.Address
	}
	return p
}

// ProfileUpdate is the payload for POST /mobile/user/update-profile.
type ProfileUpdate struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	IDNumber    string `json:"id_number,omitempty"`
	Address     string `json:"address,omitempty"`
	PhoneNumber string `json:"phone_number"`
}

// ClientEvent is the analytics payload published for user-visible milestones.
type ClientEvent struct {
	Name              string    `json:"name"`
	TransactionID     string    `json:"transaction_id,omitempty"`
	Reference         string    `json:"transaction_reference,omitempty"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty"`
	Amount            string    `json:"amount,omitempty"`
	Status            string    `json:"status,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Routing keys for ClientEvent.
const (
	EventTransactionCreated     = "transaction.created"
	EventPaymentInitiated       = "payment.initiated"
	EventPaymentCompleted       = "payment.completed"
	EventPaymentFailed          = "payment.failed"
	EventEscrowReleased         = "escrow.released"
	EventEscrowReleaseRequested = "escrow.release_requested"
	EventComplaintSubmitted     = "complaint.submitted"
)
