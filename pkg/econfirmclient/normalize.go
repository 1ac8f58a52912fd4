package econfirmclient

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/shopspring/decimal"
)

// flexString accepts a JSON string or number. Ids and paybill numbers arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexDecimal accepts a JSON number or a numeric string.
type flexDecimal struct {
	value decimal.Decimal
	set   bool
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		// Unparseable amounts are treated as absent rather than failing the whole payload.
		return nil
	}
	f.value, f.set = d, true
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime accepts the timestamp layouts the backend emits and ignores anything else.
type flexTime struct {
	value *time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return nil
	}
	raw := string(s)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			f.value = &t
			return nil
		}
	}
	return nil
}

// rawTransaction is the loose wire shape of a transaction.
type rawTransaction struct {
	ID                   flexString  `json:"id"`
	TransactionID        flexString  `json:"transaction_id"`
	TransactionReference flexString  `json:"transaction_reference"`
	Reference            flexString  `json:"reference"`
	TransactionType      flexString  `json:"transaction_type"`
	RecipientType        string      `json:"recipient_type"`
	PaymentMethod        string      `json:"payment_method"`
	RecipientMobile      flexString  `json:"recipient_mobile"`
	ReceiverMobile       flexString  `json:"receiver_mobile"`
	PaybillNumber        flexString  `json:"paybill_number"`
	PaybillTillNumber    flexString  `json:"paybill_till_number"`
	AccountNumber        flexString  `json:"account_number"`
	SenderMobile         flexString  `json:"sender_mobile"`
	TransactionAmount    flexDecimal `json:"transaction_amount"`
	Amount               flexDecimal `json:"amount"`
	TransactionFee       flexDecimal `json:"transaction_fee"`
	Fee                  flexDecimal `json:"fee"`
	Conditions           string      `json:"conditions"`
	TransactionDetails   string      `json:"transaction_details"`
	Status               string      `json:"status"`
	CheckoutRequestID    flexString  `json:"checkout_request_id"`
	CreatedAt            flexTime    `json:"created_at"`
	PaymentInitiatedAt   flexTime    `json:"payment_initiated_at"`
	FundedAt             flexTime    `json:"funded_at"`
	CompletedAt          flexTime    `json:"completed_at"`
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func firstSet(values ...flexDecimal) decimal.Decimal {
	for _, v := range values {
		if v.set {
			return v.value
		}
	}
	return decimal.Zero
}

// toDomain maps the wire shape onto the canonical transaction.
func (r rawTransaction) toDomain() domain.Transaction {
	tx := domain.Transaction{
		ID:                 firstNonEmpty(r.ID, r.TransactionID),
		Reference:          firstNonEmpty(r.TransactionReference, r.Reference),
		TransactionType:    string(r.TransactionType),
		RecipientMobile:    firstNonEmpty(r.ReceiverMobile, r.RecipientMobile),
		PaybillNumber:      firstNonEmpty(r.PaybillNumber, r.PaybillTillNumber),
		AccountNumber:      string(r.AccountNumber),
		SenderMobile:       string(r.SenderMobile),
		Amount:             firstSet(r.TransactionAmount, r.Amount),
		Fee:                firstSet(r.TransactionFee, r.Fee),
		Conditions:         r.Conditions,
		Status:             r.Status,
		CheckoutRequestID:  string(r.CheckoutRequestID),
		CreatedAt:          r.CreatedAt.value,
		PaymentInitiatedAt: r.PaymentInitiatedAt.value,
		FundedAt:           r.FundedAt.value,
		CompletedAt:        r.CompletedAt.value,
	}
	if tx.Conditions == "" {
		tx.Conditions = r.TransactionDetails
	}

	kind := strings.ToLower(strings.TrimSpace(r.RecipientType))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	}
	switch {
	case kind == string(domain.RecipientPaybill):
		tx.RecipientType = domain.RecipientPaybill
	case kind == string(domain.RecipientMobile):
		tx.RecipientType = domain.RecipientMobile
	case tx.RecipientMobile == "" && tx.PaybillNumber != "":
		tx.RecipientType = domain.RecipientPaybill
	default:
		tx.RecipientType = domain.RecipientMobile
	}
	return tx
}

// decodeTransactions accepts a single object or an array of objects.
func decodeTransactions(data json.RawMessage) ([]domain.Transaction, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var raws []rawTransaction
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
	} else {
		var single rawTransaction
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, err
		}
		raws = append(raws, single)
	}
	out := make([]domain.Transaction, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// rawCatalogItem accepts {label,value}, {name,id} or a bare string.
type rawCatalogItem struct {
	Label string
	Value string
}

func (c *rawCatalogItem) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		c.Label, c.Value = s, s
		return nil
	}
	var obj struct {
		Label flexString `json:"label"`
		Name  flexString `json:"name"`
		Value flexString `json:"value"`
		ID    flexString `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	c.Label = firstNonEmpty(obj.Label, obj.Name)
	c.Value = firstNonEmpty(obj.Value, obj.ID)
	if c.Value == "" {
		c.Value = c.Label
	}
	if c.Label == "" {
		c.Label = c.Value
	}
	return nil
}

// rawProfile is the loose wire shape of a user profile.
type rawProfile struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       flexString `json:"phone"`
	PhoneNumber flexString `json:"phone_number"`
	IDNumber    flexString `json:"id_number"`
	Address     string     `json:"address"`
}

func (r rawProfile) toDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:       string(r.ID),
		Name:     r.Name,
		Email:    r.Email,
		Phone:    firstNonEmpty(r.Phone, r.PhoneNumber),
		IDNumber: string(r.IDNumber),
		Address:  r.Address,
	}
}
