package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AlbertWebs/e-confirm-mobile/internal/app"
	"github.com/AlbertWebs/e-confirm-mobile/internal/domain"
	"github.com/AlbertWebs/e-confirm-mobile/internal/store"
	"github.com/AlbertWebs/e-confirm-mobile/pkg/econfirmclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const fundedTransaction = `{"success":true,"data":{
	"id":7,"transaction_reference":"EC-7","recipient_type":"mobile",
	"receiver_mobile":"+254712345678","sender_mobile":"+254700000001",
	"transaction_amount":500,"transaction_fee":5,"status":"Funded - Awaiting Release"}}`

// fakeBackend answers the eConfirm mobile API routes used by the tests.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	mux.HandleFunc(econfirmclient.PathTransactionTypes, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"success":true,"data":[{"label":"Goods & Services","value":"goods_services"}]}`)
	})
	mux.HandleFunc(econfirmclient.PathSearchTransaction, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Reference string `json:"reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reference == "EC-7" {
			reply(w, http.StatusOK, fundedTransaction)
			return
		}
		reply(w, http.StatusOK, `{"success":true,"data":null}`)
	})
	mux.HandleFunc(econfirmclient.PathTransaction+"/7", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, fundedTransaction)
	})
	mux.HandleFunc(econfirmclient.PathSendOTP, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, `{"success":true,"message":"OTP sent"}`)
	})
	mux.HandleFunc(econfirmclient.PathVerifyOTP, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusBadRequest, `{"success":false,"message":"Invalid OTP"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type memStore struct {
	values map[string]string
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func newTestRouter(t *testing.T, baseURL string) (http.Handler, Dependencies) {
	t.Helper()
	logger := testLogger()
	client := econfirmclient.NewClient(baseURL, 2*time.Second, logger)
	kv := &memStore{values: map[string]string{}}
	events := app.EventPublisher(nil)

	state := app.NewAppState(client, logger)
	session := app.NewSession(kv, client, logger)
	deps := Dependencies{
		State:       state,
		Session:     session,
		Wizard:      app.NewWizard(client, state, session, events, logger),
		Payment:     app.NewPaymentFlow(client, state, events, logger),
		Poller:      app.NewStatusPoller(client, app.SystemClock{}, time.Second, time.Minute, events, logger),
		Escrow:      app.NewEscrowDetail(client, session, state, events, logger),
		OTP:         app.NewOTPSession(client, session, app.SystemClock{}, time.Minute, logger),
		History:     app.NewHistory(client, logger),
		Complaints:  app.NewComplaints(client, kv, events, logger),
		Preferences: app.NewPreferences(kv, logger),
	}
	t.Cleanup(deps.OTP.Exit)
	t.Cleanup(deps.Poller.Exit)
	return NewRouter(NewHandler(deps, logger), []string{"*"}, logger), deps
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  map[string]any  `json:"errors"`
	Reload  bool            `json:"reload"`
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (int, testResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, fakeBackend(t).URL)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "healthy" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestWizardValidationIs422(t *testing.T) {
	h, _ := newTestRouter(t, fakeBackend(t).URL)

	if code, _ := doRequest(t, h, http.MethodPost, "/wizard", ""); code != http.StatusOK {
		t.Fatalf("start wizard: %d", code)
	}
	if code, _ := doRequest(t, h, http.MethodPatch, "/wizard", `{"recipient_mobile":"0712"}`); code != http.StatusOK {
		t.Fatalf("set fields: %d", code)
	}
	code, resp := doRequest(t, h, http.MethodPost, "/wizard/next", "")
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if resp.Success || resp.Errors["recipient_mobile"] == nil {
		t.Fatalf("expected field error, got %+v", resp)
	}

	code, _ = doRequest(t, h, http.MethodPatch, "/wizard", `{"colour":"red"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown field should be 400, got %d", code)
	}
}

func TestLeavingFlowDiscardsDraft(t *testing.T) {
	h, deps := newTestRouter(t, fakeBackend(t).URL)

	deps.State.SetDraft(domain.Transaction{ID: "7", Status: "Pending"})
	code, resp := doRequest(t, h, http.MethodPost, "/wizard/back", "")
	if code != http.StatusOK {
		t.Fatalf("back: %d", code)
	}
	var nav wizardResponse
	if err := json.Unmarshal(resp.Data, &nav); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !nav.Exit {
		t.Fatalf("back on the first step should exit")
	}
	if _, ok := deps.State.Draft(); ok {
		t.Fatalf("draft should be discarded after leaving the wizard")
	}

	deps.State.SetDraft(domain.Transaction{ID: "7", Status: "Pending"})
	if code, _ := doRequest(t, h, http.MethodPost, "/payment/leave", ""); code != http.StatusOK {
		t.Fatalf("leave: %d", code)
	}
	code, _ = doRequest(t, h, http.MethodPost, "/payment/initiate", "")
	if code != http.StatusBadRequest {
		t.Fatalf("initiate without a draft should be 400, got %d", code)
	}
}

func TestHistorySearch(t *testing.T) {
	h, _ := newTestRouter(t, fakeBackend(t).URL)

	code, resp := doRequest(t, h, http.MethodPost, "/history/search", `{"reference":"EC-404"}`)
	if code != http.StatusNotFound || resp.Message != app.MessageNoTransactionFound {
		t.Fatalf("expected not found, got %d %q", code, resp.Message)
	}

	code, resp = doRequest(t, h, http.MethodPost, "/history/search", `{"reference":"EC-7"}`)
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("search failed: %d %+v", code, resp)
	}
	var results []app.HistoryResult
	if err := json.Unmarshal(resp.Data, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0].Total != "505" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestTransportErrorIs502(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	h, _ := newTestRouter(t, url)
	code, resp := doRequest(t, h, http.MethodPost, "/history/search", `{"reference":"EC-7"}`)
	if code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
	if resp.Message != econfirmclient.ConnectFailureMessage {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestEscrowReleaseRefusedForSeller(t *testing.T) {
	h, deps := newTestRouter(t, fakeBackend(t).URL)
	if err := deps.Session.SetGuestPhone(context.Background(), "+254712345678"); err != nil {
		t.Fatalf("SetGuestPhone: %v", err)
	}

	code, resp := doRequest(t, h, http.MethodPost, "/escrow/7/enter", "")
	if code != http.StatusOK {
		t.Fatalf("enter: %d %+v", code, resp)
	}
	var view app.EscrowView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.ActionLabel != "Request Release" {
		t.Fatalf("unexpected action %q", view.ActionLabel)
	}

	code, _ = doRequest(t, h, http.MethodPost, "/escrow/release", "")
	if code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestOTPRejectedIs400(t *testing.T) {
	h, _ := newTestRouter(t, fakeBackend(t).URL)

	code, resp := doRequest(t, h, http.MethodPost, "/otp/send", `{"phone_number":"+254712345678"}`)
	if code != http.StatusOK || resp.Message != "OTP sent" {
		t.Fatalf("send: %d %+v", code, resp)
	}
	if code, _ := doRequest(t, h, http.MethodPut, "/otp/digits/0", `{"value":"123456"}`); code != http.StatusOK {
		t.Fatalf("paste: %d", code)
	}
	code, resp = doRequest(t, h, http.MethodPost, "/otp/verify", "")
	if code != http.StatusBadRequest || resp.Message != "Invalid OTP" {
		t.Fatalf("expected 400 Invalid OTP, got %d %q", code, resp.Message)
	}
	var view app.OTPView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Step != app.OTPStepCode || view.Digits[0] != "" {
		t.Fatalf("expected cleared code step, got %+v", view)
	}

	if code, _ := doRequest(t, h, http.MethodPut, "/otp/digits/9", `{"value":"1"}`); code != http.StatusBadRequest {
		t.Fatalf("out of range index should be 400, got %d", code)
	}
}

func TestThemeToggle(t *testing.T) {
	h, _ := newTestRouter(t, fakeBackend(t).URL)
	_, resp := doRequest(t, h, http.MethodPost, "/settings/theme/toggle", "")
	var got map[string]string
	if err := json.Unmarshal(resp.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["theme"] != "dark" {
		t.Fatalf("expected dark, got %q", got["theme"])
	}
}

func TestRecovererReturnsReloadEnvelope(t *testing.T) {
	h := Recoverer(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	code, resp := doRequest(t, h, http.MethodGet, "/", "")
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if resp.Success || !resp.Reload || resp.Message != MessageUnexpected {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}
