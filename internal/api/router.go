/**
 * @description
 * This file sets up the HTTP router for the eConfirm mobile gateway using go-chi/chi.
 * Every screen of the app is exposed as a small set of routes; read routes return the
 * current view, mutating routes are serialized so the state machines see one event at
 * a time.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: router and standard middleware.
 * - github.com/go-chi/cors: CORS for browser-based clients.
 */
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the gateway routes.
func NewRouter(h *Handler, allowedOrigins []string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(Recoverer(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Reads
	r.Get("/transaction-types", h.handleTransactionTypes)
	r.Get("/wizard", h.handleWizardView)
	r.Get("/payment", h.handlePaymentView)
	r.Get("/payment/status", h.handlePaymentStatus)
	r.Get("/escrow", h.handleEscrowView)
	r.Get("/otp", h.handleOTPView)
	r.Get("/session", h.handleSessionView)
	r.Get("/complaints/prefill", h.handleComplaintPrefill)
	r.Get("/settings/theme", h.handleTheme)

	// Mutations run one at a time.
	r.Group(func(r chi.Router) {
		r.Use(h.serialize)

		r.Post("/transaction-types/refresh", h.handleRefreshTransactionTypes)

		r.Post("/wizard", h.handleWizardStart)
		r.Patch("/wizard", h.handleWizardSetFields)
		r.Post("/wizard/next", h.handleWizardNext)
		r.Post("/wizard/back", h.handleWizardBack)
		r.Delete("/wizard/banner", h.handleWizardDismissBanner)

		r.Post("/payment/initiate", h.handlePaymentInitiate)
		r.Post("/payment/status/enter", h.handlePaymentStatusEnter)
		r.Post("/payment/status/exit", h.handlePaymentStatusExit)
		r.Post("/payment/leave", h.handlePaymentLeave)

		r.Post("/escrow/{id}/enter", h.handleEscrowEnter)
		r.Post("/escrow/reload", h.handleEscrowReload)
		r.Post("/escrow/exit", h.handleEscrowExit)
		r.Post("/escrow/release", h.handleEscrowRelease)
		r.Post("/escrow/request-release", h.handleEscrowRequestRelease)
		r.Post("/escrow/continue-payment", h.handleEscrowContinuePayment)

		r.Post("/otp/send", h.handleOTPSend)
		r.Post("/otp/resend", h.handleOTPResend)
		r.Put("/otp/digits/{index}", h.handleOTPSetDigit)
		r.Delete("/otp/digits/{index}", h.handleOTPBackspace)
		r.Post("/otp/verify", h.handleOTPVerify)
		r.Post("/otp/change-phone", h.handleOTPChangePhone)
		r.Post("/otp/exit", h.handleOTPExit)

		r.Put("/session/phone", h.handleSessionSetPhone)
		r.Post("/session/logout", h.handleSessionLogout)
		r.Put("/session/profile", h.handleSessionUpdateProfile)

		r.Post("/history/search", h.handleHistorySearch)
		r.Post("/history/open", h.handleHistoryOpen)

		r.Post("/complaints", h.handleComplaintSubmit)

		r.Post("/settings/theme/toggle", h.handleThemeToggle)
	})

	return r
}
