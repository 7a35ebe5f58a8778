package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eticket_parser/internal/export"
	"eticket_parser/internal/extract"
	"eticket_parser/internal/pdftext/pdftest"
	"eticket_parser/internal/ticket"
	"eticket_parser/internal/wallet"
)

const qrText = "PNR No.: 1234567890, Train No.: 12345, Train Name: Rajdhani, " +
	"From: DELHI, To: MUMBAI, Date Of Journey: 25-Mar-2026, " +
	"Scheduled Departure:25-Mar-2026 19:05, Class: 3A, " +
	"Passenger Name:Jane Doe, Gender:F, Age:30, Status:CNFB1/50MB, " +
	"Passenger Name:John Doe, Gender:M, Age:32, Status:WL/4"

// memStore keeps the saved list in memory.
type memStore struct {
	saved []*ticket.Ticket
}

func (s *memStore) Load(context.Context) ([]*ticket.Ticket, error) {
	return append([]*ticket.Ticket{}, s.saved...), nil
}

func (s *memStore) Save(_ context.Context, tickets []*ticket.Ticket) error {
	s.saved = append([]*ticket.Ticket{}, tickets...)
	return nil
}

func newTestServer(cfg Config) (*TicketServer, *wallet.Wallet) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := wallet.New(&memStore{}, logger)
	cfg.Logger = logger
	return NewTicketServer(extract.NewService(logger), w, export.NewService(logger), cfg), w
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(Config{})
	router := server.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server, _ := newTestServer(Config{
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		url        string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{
			name:       "no key",
			url:        "/health",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			url:        "/health",
			apiKey:     "wrong-key",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key via X-API-Key",
			url:        "/health",
			apiKey:     "test-key-123",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key via Bearer",
			url:        "/tickets",
			apiKey:     "another-key",
			keyHeader:  "Authorization",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key via query",
			url:        "/tickets?api_key=test-key-123",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestSubmitQR(t *testing.T) {
	server, w := newTestServer(Config{})
	handler := server.Handler()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantError   string
	}{
		{"json body", "application/json", `{"text":"` + qrText + `"}`, http.StatusCreated, ""},
		{"plain body", "text/plain; charset=utf-8", qrText, http.StatusCreated, ""},
		{"no passengers", "text/plain", "PNR No.: 1234567890, Train No.: 12345", http.StatusUnprocessableEntity, msgNoPassengers},
		{"blank", "text/plain", "   ", http.StatusBadRequest, "text is required"},
		{"bad json", "application/json", `{"text":`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/qr", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantError != "" {
				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", resp["error"], tt.wantError)
				}
			}
		})
	}

	// Two successful submissions of two passengers each.
	if got := len(w.List()); got != 4 {
		t.Errorf("wallet holds %d tickets, want 4", got)
	}
}

func TestUploadPDFFailures(t *testing.T) {
	server, w := newTestServer(Config{MaxUploadBytes: 1024})
	handler := server.Handler()

	t.Run("raw body not a pdf", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", strings.NewReader("definitely not a pdf"))
		req.Header.Set("Content-Type", "application/pdf")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d", rec.Code)
		}
		var resp map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if resp["error"] != msgParseFailed {
			t.Errorf("error = %q, want %q", resp["error"], msgParseFailed)
		}
	})

	t.Run("multipart without file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("note", "no file here")
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("multipart with bad file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, _ := mw.CreateFormFile("file", "ticket.pdf")
		_, _ = fw.Write([]byte("%PDF-1.4 broken"))
		_ = mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", rec.Code)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", strings.NewReader(""))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", strings.NewReader(strings.Repeat("x", 2048)))
		req.Header.Set("Content-Type", "application/pdf")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rec.Code)
		}
	})

	if got := len(w.List()); got != 0 {
		t.Errorf("wallet holds %d tickets, want 0", got)
	}
}

func TestTicketLifecycle(t *testing.T) {
	server, w := newTestServer(Config{})
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/qr", strings.NewReader(qrText))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected status 201, got %d", rec.Code)
	}

	var created []ticket.Ticket
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d tickets, want 2", len(created))
	}
	id := created[0].ID

	// Upload a PDF
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "ticket.pdf")
	_, _ = fw.Write(pdftest.Build(
		"PNR: 4521367890",
		"Train No: 12951",
		"From: NEW DELHI",
		"To: MUMBAI",
		"Date: 25-03-2026",
	))
	_ = mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/tickets/pdf", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded ticket.Ticket
	if err := json.NewDecoder(rec.Body).Decode(&uploaded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if uploaded.PNR != "4521367890" || uploaded.TrainNumber != "12951" || uploaded.From != "NEW DELHI" || uploaded.To != "MUMBAI" {
		t.Errorf("uploaded = %+v", uploaded)
	}

	// Get
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tickets/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected status 200, got %d", rec.Code)
	}
	var got ticket.Ticket
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.PassengerName != "Jane Doe" || got.SeatBerth != "50 (MB)" {
		t.Errorf("get = %+v", got)
	}

	// List
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil))
	var list []map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list = %d tickets, want 3", len(list))
	}
	if _, ok := list[0]["trainNumber"]; !ok {
		t.Errorf("list entries lack camelCase keys: %v", list[0])
	}

	// Export
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tickets/export.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("export Content-Type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("export body is empty")
	}

	// Delete
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tickets/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected status 204, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/tickets/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected status 404, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tickets/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: expected status 404, got %d", rec.Code)
	}

	if w.Len() != 2 {
		t.Errorf("wallet holds %d tickets, want 2", w.Len())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(Config{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "eticket_wallet_tickets") {
		t.Error("metrics output lacks eticket_wallet_tickets")
	}
}
