/**
 * @description
 * This file defines the canonical escrow transaction model used by every layer of the
 * gateway. The backend returns loosely shaped payloads; pkg/econfirmclient maps them into
 * these types at the API boundary so the rest of the code never branches on alternate
 * field names.
 *
 * @notes
 * - Amounts use decimal.Decimal. The 1% fee is rounded up, and binary floats turn values
 *   such as 700 * 0.01 into 7.000000000000001, which would round up to the wrong shilling.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipientType selects how the escrow recipient is addressed.
type RecipientType string

const (
	RecipientMobile  RecipientType = "mobile"
	RecipientPaybill RecipientType = "paybill"
)

// Transaction is the client's working copy of an escrow transaction.
// Everything except the wizard fields is assigned by the server.
type Transaction struct {
	ID                 string          `json:"id"`
	Reference          string          `json:"transaction_reference"`
	TransactionType    string          `json:"transaction_type"`
	RecipientType      RecipientType   `json:"recipient_type"`
	RecipientMobile    string          `json:"recipient_mobile,omitempty"`
	PaybillNumber      string          `json:"paybill_number,omitempty"`
	AccountNumber      string          `json:"account_number,omitempty"`
	SenderMobile       string          `json:"sender_mobile"`
	Amount             decimal.Decimal `json:"transaction_amount"`
	Fee                decimal.Decimal `json:"transaction_fee"`
	Conditions         string          `json:"conditions,omitempty"`
	Status             string          `json:"status"`
	CheckoutRequestID  string          `json:"checkout_request_id,omitempty"`
	CreatedAt          *time.Time      `json:"created_at,omitempty"`
	PaymentInitiatedAt *time.Time      `json:"payment_initiated_at,omitempty"`
	FundedAt           *time.Time      `json:"funded_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

// Total is the amount the buyer pays: escrow amount plus fee.
func (t *Transaction) Total() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// ReceiverMobile returns the seller's phone, empty for paybill recipients.
func (t *Transaction) ReceiverMobile() string {
	if t.RecipientType == RecipientPaybill {
		return ""
	}
	return t.RecipientMobile
}

// Flags classifies the transaction's raw status string.
func (t *Transaction) Flags() StatusFlags {
	return ClassifyStatus(t.Status)
}

// TransactionType is one entry of the server-supplied catalog.
type TransactionType struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DefaultTransactionTypes is used whenever the catalog cannot be fetched.
func DefaultTransactionTypes() []TransactionType {
	return []TransactionType{
		{Label: "Goods & Services", Value: "goods_services"},
		{Label: "Property", Value: "property"},
		{Label: "Vehicle", Value: "vehicle"},
		{Label: "Other", Value: "other"},
	}
}

// CreateTransactionRequest is the payload for POST /mobile/transaction/create.
// Exactly one of RecipientMobile or the paybill pair is populated.
type CreateTransactionRequest struct {
	RecipientType   RecipientType
	RecipientMobile string
	PaybillNumber   string
	AccountNumber   string
	SenderMobile    string
	Amount          decimal.Decimal
	Fee             decimal.Decimal
	TransactionType string
	Conditions      string
}

// PaymentInitiation is returned by POST /mobile/payment/initiate.
type PaymentInitiation struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

// PaymentState is the poller's three-way classification of a checkout request.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
)

// PaymentStatus is returned by POST /mobile/payment/status.
type PaymentStatus struct {
	State   PaymentState `json:"status"`
	Message string       `json:"message"`
}

// Complaint is the payload for POST /mobile/complaint.
type Complaint struct {
	TransactionReference string `json:"transaction_reference"`
	Name                 string `json:"name"`
	Comment              string `json:"comment"`
}
