package api

import (
	"net/http"

	"github.com/AlbertWebs/e-confirm-mobile/internal/app"
	"github.com/go-chi/chi/v5"
)

// wizardResponse is returned by the wizard navigation routes.
type wizardResponse struct {
	Wizard    app.WizardView `json:"wizard"`
	Advanced  bool           `json:"advanced"`
	Submitted bool           `json:"submitted"`
	Exit      bool           `json:"exit"`
}

func (h *Handler) handleWizardView(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Wizard.View())
}

func (h *Handler) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Wizard.Start())
}

func (h *Handler) handleWizardSetFields(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := decodeJSON(r, &fields, false); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if err := h.deps.Wizard.SetFields(fields); err != nil {
		if _, ok := app.AsValidationErrors(err); ok {
			h.writeError(w, r, err, h.deps.Wizard.View())
			return
		}
		h.writeBadRequest(w, err.Error())
		return
	}
	h.writeOK(w, "", h.deps.Wizard.View())
}

func (h *Handler) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Wizard.Next(r.Context())
	view := h.deps.Wizard.View()
	if err != nil {
		h.writeError(w, r, err, wizardResponse{Wizard: view})
		return
	}
	message := ""
	if res.Submitted {
		message = "Transaction created successfully"
	}
	h.writeOK(w, message, wizardResponse{Wizard: view, Advanced: res.Advanced, Submitted: res.Submitted})
}

func (h *Handler) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	exit := h.deps.Wizard.Back()
	h.writeOK(w, "", wizardResponse{Wizard: h.deps.Wizard.View(), Exit: exit})
}

func (h *Handler) handleWizardDismissBanner(w http.ResponseWriter, r *http.Request) {
	h.deps.Wizard.DismissBanner()
	h.writeOK(w, "", h.deps.Wizard.View())
}

func (h *Handler) handlePaymentView(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Payment.View())
}

func (h *Handler) handlePaymentInitiate(w http.ResponseWriter, r *http.Request) {
	initiation, err := h.deps.Payment.Initiate(r.Context())
	if err != nil {
		h.writeError(w, r, err, h.deps.Payment.View())
		return
	}
	h.writeOK(w, initiation.Message, initiation)
}

func (h *Handler) handlePaymentStatusEnter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckoutRequestID string `json:"checkout_request_id"`
	}
	if err := decodeJSON(r, &req, true); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if req.CheckoutRequestID == "" {
		if draft, ok := h.deps.State.Draft(); ok {
			req.CheckoutRequestID = draft.CheckoutRequestID
		}
	}
	view, err := h.deps.Poller.Enter(req.CheckoutRequestID)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeOK(w, view.Message, view)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	view := h.deps.Poller.View()
	h.writeOK(w, view.Message, view)
}

// handlePaymentStatusExit leaves the status screen. A settled payment also ends the
// flow, so its draft is dropped.
func (h *Handler) handlePaymentStatusExit(w http.ResponseWriter, r *http.Request) {
	h.deps.Poller.Exit()
	view := h.deps.Poller.View()
	if view.Settled() {
		h.deps.Payment.Leave()
	}
	h.writeOK(w, "", view)
}

func (h *Handler) handlePaymentLeave(w http.ResponseWriter, r *http.Request) {
	h.deps.Payment.Leave()
	h.writeOK(w, "", h.deps.Payment.View())
}

func (h *Handler) handleEscrowView(w http.ResponseWriter, r *http.Request) {
	h.writeOK(w, "", h.deps.Escrow.View())
}

func (h *Handler) handleEscrowEnter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeBadRequest(w, "Transaction id is required")
		return
	}
	view, err := h.deps.Escrow.Enter(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, "", view)
}

func (h *Handler) handleEscrowReload(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Escrow.Reload(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, "", view)
}

func (h *Handler) handleEscrowExit(w http.ResponseWriter, r *http.Request) {
	h.deps.Escrow.Exit()
	h.writeOK(w, "", nil)
}

func (h *Handler) handleEscrowRelease(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Escrow.Release(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, view.Message, view)
}

func (h *Handler) handleEscrowRequestRelease(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Escrow.RequestRelease(r.Context())
	if err != nil {
		h.writeError(w, r, err, view)
		return
	}
	h.writeOK(w, view.Message, view)
}

// handleEscrowContinuePayment makes the open transaction the draft so the client can
// go to the payment screen.
func (h *Handler) handleEscrowContinuePayment(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Escrow.ContinuePayment(); err != nil {
		h.writeError(w, r, err, h.deps.Escrow.View())
		return
	}
	h.writeOK(w, "", h.deps.Payment.View())
}
