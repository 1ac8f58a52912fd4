package econfirmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
)

// TransactionTypes fetches the transaction-type catalog.
func (c *Client) TransactionTypes(ctx context.Context) ([]domain.TransactionType, error) {
	const fallback = "Failed to load transaction types"
	env, err := c.do(ctx, http.MethodGet, PathTransactionTypes, nil, fallback)
	if err != nil {
		return nil, err
	}
	var items []rawCatalogItem
	if err := decodeData(env, &items, fallback); err != nil {
		return nil, err
	}
	types := make([]domain.TransactionType, 0, len(items))
	for _, item := range items {
		if item.Value == "" {
			continue
		}
		types = append(types, domain.TransactionType{Label: item.Label, Value: item.Value})
	}
	return types, nil
}

type createTransactionPayload struct {
	RecipientType     string      `json:"recipient_type"`
	RecipientMobile   string      `json:"recipient_mobile,omitempty"`
	PaybillNumber     string      `json:"paybill_number,omitempty"`
	AccountNumber     string      `json:"account_number,omitempty"`
	TransactionAmount json.Number `json:"transaction_amount"`
	TransactionFee    json.Number `json:"transaction_fee"`
	TransactionType   string      `json:"transaction_type"`
	Conditions        string      `json:"conditions"`
	SenderMobile      string      `json:"sender_mobile"`
}

// CreateTransaction submits a new escrow transaction. Recipient fields are
// normalized so that only the pair matching RecipientType is sent.
func (c *Client) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, error) {
	const fallback = "Failed to create transaction. Please try again."
	payload := createTransactionPayload{
		RecipientType:     string(req.RecipientType),
		TransactionAmount: json.Number(req.Amount.String()),
		TransactionFee:    json.Number(req.Fee.String()),
		TransactionType:   req.TransactionType,
		Conditions:        req.Conditions,
		SenderMobile:      req.SenderMobile,
	}
	if req.RecipientType == domain.RecipientPaybill {
		payload.PaybillNumber = req.PaybillNumber
		payload.AccountNumber = req.AccountNumber
	} else {
		payload.RecipientType = string(domain.RecipientMobile)
		payload.RecipientMobile = req.RecipientMobile
	}

	env, err := c.do(ctx, http.MethodPost, PathCreateTransaction, payload, fallback)
	if err != nil {
		return nil, err
	}
	txs, err := decodeTransactions(env.Data)
	if err != nil {
		return nil, &APIError{Kind: KindDecode, Message: fallback, Err: err}
	}
	if len(txs) == 0 {
		return nil, &APIError{Kind: KindDecode, Message: fallback}
	}
	return &txs[0], nil
}

// InitiatePayment starts the mobile-money checkout for a created transaction.
func (c *Client) InitiatePayment(ctx context.Context, transactionID string) (*domain.PaymentInitiation, error) {
	const fallback = "Failed to initiate payment. Please try again."
	env, err := c.do(ctx, http.MethodPost, PathInitiatePayment, map[string]string{"transaction_id": transactionID}, fallback)
	if err != nil {
		return nil, err
	}

	var data struct {
		CheckoutRequestID flexString `json:"checkout_request_id"`
		Status            string     `json:"status"`
	}
	if env.hasData() {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &APIError{Kind: KindDecode, Message: fallback, Err: err}
		}
	}
	out := &domain.PaymentInitiation{
		CheckoutRequestID: firstNonEmpty(data.CheckoutRequestID, flexString(env.CheckoutRequestID)),
		Status:            data.Status,
		Message:           env.Message,
	}
	if out.Status == "" {
		out.Status = env.Status
	}
	if out.CheckoutRequestID == "" {
		return nil, &APIError{Kind: KindDecode, Message: fallback}
	}
	return out, nil
}

// CheckPaymentStatus polls a checkout request. Only explicit "completed" and "failed"
// statuses are terminal; anything else reads as pending. A server-reported failed status
// is returned as a value even when success is false.
func (c *Client) CheckPaymentStatus(ctx context.Context, checkoutRequestID string) (*domain.PaymentStatus, error) {
	const fallback = "Failed to check payment status"
	env, err := c.do(ctx, http.MethodPost, PathPaymentStatus, map[string]string{"checkout_request_id": checkoutRequestID}, fallback)
	if env == nil {
		return nil, err
	}

	status := env.Status
	if status == "" && env.hasData() {
		var data struct {
			Status string `json:"status"`
		}
		if jsonErr := json.Unmarshal(env.Data, &data); jsonErr == nil {
			status = data.Status
		}
	}
	state := normalizePaymentState(status)

	if err != nil && state != domain.PaymentFailed {
		return nil, err
	}
	return &domain.PaymentStatus{State: state, Message: env.Message}, nil
}

func normalizePaymentState(status string) domain.PaymentState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(domain.PaymentCompleted):
		return domain.PaymentCompleted
	case string(domain.PaymentFailed):
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

// GetTransaction loads the full transaction detail.
func (c *Client) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	const fallback = "Failed to load transaction"
	env, err := c.do(ctx, http.MethodGet, PathTransaction+"/"+url.PathEscape(id), nil, fallback)
	if err != nil {
		return nil, err
	}
	txs, err := decodeTransactions(env.Data)
	if err != nil {
		return nil, &APIError{Kind: KindDecode, Message: fallback, Err: err}
	}
	if len(txs) == 0 {
		return nil, &APIError{Kind: KindDecode, Message: fallback}
	}
	return &txs[0], nil
}

// SearchTransactions looks up transactions by reference. The backend answers with
// either one object or an array.
func (c *Client) SearchTransactions(ctx context.Context, reference string) ([]domain.Transaction, error) {
	const fallback = "Failed to search transaction. Please try again."
	env, err := c.do(ctx, http.MethodPost, PathSearchTransaction, map[string]string{"reference": reference}, fallback)
	if err != nil {
		return nil, err
	}
	txs, err := decodeTransactions(env.Data)
	if err != nil {
		return nil, &APIError{Kind: KindDecode, Message: fallback, Err: err}
	}
	return txs, nil
}

// ReleasePayment releases escrowed funds to the seller. Buyer only.
func (c *Client) ReleasePayment(ctx context.Context, transactionID string) (string, error) {
	return c.postTransactionAction(ctx, PathReleasePayment, transactionID, "Failed to release payment", "Payment released successfully!")
}

// RequestRelease asks the buyer to release escrowed funds. Seller only.
func (c *Client) RequestRelease(ctx context.Context, transactionID string) (string, error) {
	return c.postTransactionAction(ctx, PathRequestRelease, transactionID, "Failed to send release request", "Release request sent to buyer!")
}

func (c *Client) postTransactionAction(ctx context.Context, base, transactionID, fallback, success string) (string, error) {
	path := fmt.Sprintf("%s/%s", base, url.PathEscape(transactionID))
	env, err := c.do(ctx, http.MethodPost, path, map[string]string{"transaction_id": transactionID}, fallback)
	if err != nil {
		return "", err
	}
	return messageOr(env, success), nil
}

// SubmitComplaint files a support complaint against a transaction reference.
func (c *Client) SubmitComplaint(ctx context.Context, complaint domain.Complaint) (string, error) {
	env, err := c.do(ctx, http.MethodPost, PathComplaint, complaint, "Failed to submit complaint. Please try again.")
	if err != nil {
		return "", err
	}
	return messageOr(env, "Your complaint has been submitted successfully. We will review it and get back to you soon."), nil
}

// SendOTP asks the backend to text a one-time code to phone.
func (c *Client) SendOTP(ctx context.Context, phone string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, PathSendOTP, map[string]string{"phone_number": phone}, "Failed to send OTP")
	if err != nil {
		return "", err
	}
	return messageOr(env, "OTP sent successfully"), nil
}

// VerifyOTP checks the code and returns the authenticated profile. The verified phone
// is used when the profile omits one.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*domain.UserProfile, string, error) {
	const fallback = "Invalid OTP"
	env, err := c.do(ctx, http.MethodPost, PathVerifyOTP, map[string]string{"phone_number": phone, "otp": otp}, fallback)
	if err != nil {
		return nil, "", err
	}
	var raw rawProfile
	if err := decodeData(env, &raw, fallback); err != nil {
		return nil, "", err
	}
	profile := domain.UserProfile{Phone: phone}.Merge(raw.toDomain())
	return &profile, messageOr(env, "Phone verified successfully"), nil
}

// UpdateProfile posts profile edits and returns the server's view of the profile.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.UserProfile, string, error) {
	const fallback = "Failed to update profile"
	env, err := c.do(ctx, http.MethodPost, PathUpdateProfile, update, fallback)
	if err != nil {
		return nil, "", err
	}
	var raw rawProfile
	if err := decodeData(env, &raw, fallback); err != nil {
		return nil, "", err
	}
	profile := raw.toDomain()
	return &profile, messageOr(env, "Profile updated successfully"), nil
}
