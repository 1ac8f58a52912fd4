package api

import (
	"net/http"
	"strconv"

	"github.com/AlbertWebs/e-confirm-mobile/internal/app"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleOTPView(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.OTP.View())
}

func (h *Handler) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if req.PhoneNumber != "" {
		h.deps.OTP.SetPhone(req.PhoneNumber)
	}
	view, err := h.deps.OTP.SendOTP(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, view.Message, view)
}

func (h *Handler) handleOTPResend(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.OTP.Resend(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, view.Message, view)
}

func otpIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= app.OTPLength {
		return 0, false
	}
	return index, true
}

func (h *Handler) handleOTPSetDigit(w http.ResponseWriter, r *http.Request) {
	index, ok := otpIndex(r)
	if !ok {
		h.writeBadRequest(w, "Invalid digit position")
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	view, err := h.deps.OTP.SetDigit(index, req.Value)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, "", view)
}

func (h *Handler) handleOTPBackspace(w http.ResponseWriter, r *http.Request) {
	index, ok := otpIndex(r)
	if !ok {
		h.writeBadRequest(w, "Invalid digit position")
		return
	}
	h.writeOK(w, "", h.deps.OTP.Backspace(index))
}

func (h *Handler) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.OTP.Verify(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, view.Message, map[string]any{
		"otp":     view,
		"session": h.deps.Session.View(),
	})
}

func (h *Handler) handleOTPChangePhone(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.OTP.ChangePhone())
}

func (h *Handler) handleOTPExit(w http.ResponseWriter, r *http.Request) {
	h.deps.OTP.Exit()
	h.writeOK(w, "", nil)
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	results, err := h.deps.History.Search(r.Context(), req.Reference)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeOK(w, "", results)
}

// handleHistoryOpen resolves a reference and opens its escrow detail.
func (h *Handler) handleHistoryOpen(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	id, err := h.deps.History.Open(r.Context(), req.Reference)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	view, err := h.deps.Escrow.Enter(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, "", view)
}

func (h *Handler) handleComplaintPrefill(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Complaints.Prefill(r.Context()))
}

func (h *Handler) handleComplaintSubmit(w http.ResponseWriter, r *http.Request) {
	var req app.ComplaintForm
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	form, message, err := h.deps.Complaints.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, form)
		return
	}
	h.writeOK(w, message, form)
}
