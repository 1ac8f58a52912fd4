/**
 * @description
 * This package provides a client for the eConfirm escrow backend. It encapsulates the
 * JSON request/response contract of the mobile API, normalizes every failure mode
 * (transport, non-2xx, non-JSON, success=false) into a single *APIError, and maps the
 * loosely shaped payloads into the canonical domain types.
 *
 * @dependencies
 * - github.com/google/uuid: request ids sent as X-Request-ID.
 * - internal/domain: canonical transaction and profile models.
 */
package econfirmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	userAgent = "econfirm-mobile-gateway/1.0"

	// ConnectFailureMessage is shown whenever the backend cannot be reached.
	ConnectFailureMessage = "Unable to connect to server. Please check your connection and try again."
)

// Endpoint paths, relative to the API base URL.
const (
	PathTransactionTypes  = "/mobile/transaction-types"
	PathCreateTransaction = "/mobile/transaction/create"
	PathInitiatePayment   = "/mobile/payment/initiate"
	PathPaymentStatus     = "/mobile/payment/status"
	PathTransaction       = "/mobile/transaction"
	PathSearchTransaction = "/mobile/transaction/search"
	PathReleasePayment    = "/mobile/transaction/release"
	PathRequestRelease    = "/mobile/transaction/request-release"
	PathComplaint         = "/mobile/complaint"
	PathSendOTP           = "/auth/send-otp"
	PathVerifyOTP         = "/auth/verify-otp"
	PathUpdateProfile     = "/mobile/user/update-profile"
)

// Client is a client for the eConfirm mobile API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new eConfirm API client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "econfirm_client"),
	}
}

// Envelope is the uniform response body of the mobile API.
type Envelope struct {
	Success           *bool           `json:"success"`
	Message           string          `json:"message,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	Errors            map[string]any  `json:"errors,omitempty"`
	Status            string          `json:"status,omitempty"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
}

func (e *Envelope) ok() bool {
	return e.Success == nil || *e.Success
}

func (e *Envelope) hasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindServer    ErrorKind = "server"
	KindDecode    ErrorKind = "decode"
)

// APIError is the only error type returned by Client methods.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Errors     map[string]any
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("econfirm api %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("econfirm api %s error: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message suitable for a banner. It falls back to the
// generic connection message for transport errors and to err.Error() otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == KindTransport {
			return ConnectFailureMessage
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return err.Error()
}

// do executes a request and returns the decoded envelope. The envelope is returned
// whenever the server produced a JSON body, even alongside a server error, so callers
// can still inspect fields such as status.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, fallback string) (*Envelope, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &APIError{Kind: KindDecode, Message: fallback, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Message: ConnectFailureMessage, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, &APIError{Kind: KindTransport, Message: ConnectFailureMessage, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, StatusCode: resp.StatusCode, Message: ConnectFailureMessage, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	c.logger.Debug("api response", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	var env Envelope
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if isJSON {
		if err := json.Unmarshal(bodyBytes, &env); err != nil {
			isJSON = false
		}
	}
	if !isJSON {
		text := strings.TrimSpace(string(bodyBytes))
		if text == "" {
			text = "Request failed"
		}
		env = Envelope{Message: text}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, &APIError{Kind: KindDecode, StatusCode: resp.StatusCode, Message: fallback}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
		c.logger.Warn("non-2xx response", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID, "message", message)
		return envelopeIfJSON(&env, isJSON), &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Message: message, Errors: env.Errors}
	}

	if !env.ok() {
		message := env.Message
		if message == "" {
			message = fallback
		}
		return &env, &APIError{Kind: KindServer, StatusCode: resp.StatusCode, Message: message, Errors: env.Errors}
	}

	return &env, nil
}

func envelopeIfJSON(env *Envelope, isJSON bool) *Envelope {
	if !isJSON {
		return nil
	}
	return env
}

func decodeData(env *Envelope, target interface{}, fallback string) error {
	if env == nil || !env.hasData() {
		return &APIError{Kind: KindDecode, Message: fallback}
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return &APIError{Kind: KindDecode, Message: fallback, Err: err}
	}
	return nil
}

func messageOr(env *Envelope, fallback string) string {
	if env != nil && env.Message != "" {
		return env.Message
	}
	return fallback
}
