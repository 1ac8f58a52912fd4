/**
 * @description
 * This file contains the HTTP handler type of the gateway, its JSON envelope helpers and
 * the mapping from application errors to status codes. Screen-specific handlers live in
 * the handlers_*.go files.
 */
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/AlbertWebs/e-confirm-mobile/internal/app"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/econfirmclient"
)

// MessageValidation accompanies 422 responses; the per-field messages are in errors.
const MessageValidation = "Please correct the highlighted fields"

// envelope mirrors the backend's response contract.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
	Reload  bool   `json:"reload,omitempty"`
}

// Dependencies are the app components served by the gateway.
type Dependencies struct {
	State       *app.AppState
	Session     *app.Session
	Wizard      *app.Wizard
	Payment     *app.PaymentFlow
	Poller      *app.StatusPoller
	Escrow      *app.EscrowDetail
	OTP         *app.OTPSession
	History     *app.History
	Complaints  *app.Complaints
	Preferences *app.Preferences
}

// Handler holds the app components the handlers interact with.
type Handler struct {
	mu     sync.Mutex
	deps   Dependencies
	logger *slog.Logger
}

// NewHandler creates a new Handler with the given components.
func NewHandler(deps Dependencies, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deps: deps, logger: logger.With("component", "api")}
}

// localError describes how an app sentinel is reported to the client.
type localError struct {
	err     error
	status  int
	message string
}

var localErrors = []localError{
	{app.ErrNoTransactionFound, http.StatusNotFound, app.MessageNoTransactionFound},
	{app.ErrDetailsUnavailable, http.StatusBadRequest, "Transaction details are not available."},
	{app.ErrNoDraft, http.StatusBadRequest, "No transaction in progress. Please start a new escrow."},
	{app.ErrNoCheckoutRequest, http.StatusBadRequest, "There is no payment to track."},
	{app.ErrNoTransaction, http.StatusBadRequest, "No transaction is open."},
	{app.ErrActionNotAllowed, http.StatusForbidden, "This action is not available for this transaction."},
	{app.ErrResendNotAllowed, http.StatusBadRequest, "Please wait before requesting a new OTP."},
	{app.ErrIncompleteOTP, http.StatusBadRequest, "Please enter the complete 6-digit OTP"},
	{app.ErrWrongStep, http.StatusConflict, "This action is not available right now."},
	{app.ErrBusy, http.StatusConflict, "Please wait for the current request to finish."},
	{app.ErrStaleResponse, http.StatusConflict, "The request was superseded by a newer one."},
}

// errorResponse maps err to a status code and envelope.
func errorResponse(err error) (int, envelope) {
	if verrs, ok := app.AsValidationErrors(err); ok {
		return http.StatusUnprocessableEntity, envelope{Message: MessageValidation, Errors: verrs}
	}

	var apiErr *econfirmclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == econfirmclient.KindTransport {
			return http.StatusBadGateway, envelope{Message: econfirmclient.ConnectFailureMessage}
		}
		env := envelope{Message: econfirmclient.UserMessage(err)}
		if len(apiErr.Errors) > 0 {
			env.Errors = apiErr.Errors
		}
		return http.StatusBadRequest, env
	}

	for _, le := range localErrors {
		if errors.Is(err, le.err) {
			return le.status, envelope{Message: le.message}
		}
	}
	return http.StatusInternalServerError, envelope{Message: MessageUnexpected}
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// writeError reports err. data, when given, is the screen state after the failure.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, data any) {
	status, env := errorResponse(err)
	env.Data = data
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, env)
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Message: message})
}

// decodeJSON reads the request body into dst. An empty body is accepted when
// optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleTransactionTypes returns the loaded catalog.
func (h *Handler) handleTransactionTypes(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.State.Catalog())
}

// handleRefreshTransactionTypes reloads the catalog, falling back to the defaults.
func (h *Handler) handleRefreshTransactionTypes(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.State.LoadCatalog(r.Context()))
}

func (h *Handler) handleSessionView(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Session.View())
}

func (h *Handler) handleSessionSetPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if err := h.deps.Session.SetGuestPhone(r.Context(), req.PhoneNumber); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeOK(w, "", h.deps.Session.View())
}

func (h *Handler) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Session.Logout(r.Context()); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeOK(w, "Logged out", h.deps.Session.View())
}

func (h *Handler) handleSessionUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req app.ProfileInput
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	profile, message, err := h.deps.Session.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeOK(w, message, profile)
}

func (h *Handler) handleTheme(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", map[string]string{"theme": h.deps.Preferences.Theme(r.Context())})
}

func (h *Handler) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", map[string]string{"theme": h.deps.Preferences.ToggleTheme(r.Context())})
}
