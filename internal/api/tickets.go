// Package api provides REST API endpoints for uploading and managing saved tickets.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eticket_parser/internal/extract"
	"eticket_parser/internal/metrics"
	"eticket_parser/internal/ticket"
	"eticket_parser/internal/wallet"
)

// Error messages shown to clients.
const (
	msgParseFailed  = "failed to parse ticket"
	msgNoPassengers = "no valid ticket data found"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Extractor turns uploads into tickets.
type Extractor interface {
	FromPDFReader(ctx context.Context, r io.ReaderAt, size int64, name string) (*ticket.Ticket, error)
	FromQR(ctx context.Context, text string) ([]*ticket.Ticket, error)
}

// Wallet holds the saved tickets.
type Wallet interface {
	Add(ctx context.Context, tickets ...*ticket.Ticket) error
	Delete(ctx context.Context, id string) error
	Get(id string) (*ticket.Ticket, error)
	List() []*ticket.Ticket
}

// Exporter renders ticket lists as spreadsheets.
type Exporter interface {
	TicketsXLSX(tickets []*ticket.Ticket) ([]byte, error)
}

// Config holds configuration for the ticket API server.
type Config struct {
	Addr           string
	AuthEnabled    bool
	APIKeys        []string // List of valid API keys.
	Timeout        time.Duration
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// TicketServer provides REST API access to the ticket wallet.
type TicketServer struct {
	extractor Extractor
	wallet    Wallet
	exporter  Exporter
	logger    *slog.Logger

	addr           string
	timeout        time.Duration
	maxUploadBytes int64
	authEnabled    bool
	apiKeys        map[string]bool // Simple API key auth (when enabled).
}

// NewTicketServer creates a new ticket API server.
func NewTicketServer(ex Extractor, w Wallet, exp Exporter, cfg Config) *TicketServer {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	s := &TicketServer{
		extractor:      ex,
		wallet:         w,
		exporter:       exp,
		logger:         cfg.Logger,
		addr:           cfg.Addr,
		timeout:        cfg.Timeout,
		maxUploadBytes: cfg.MaxUploadBytes,
		authEnabled:    cfg.AuthEnabled,
		apiKeys:        keys,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	if s.timeout <= 0 {
		s.timeout = 60 * time.Second
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 10 << 20
	}
	return s
}

// Handler returns the complete HTTP handler: middleware, /metrics and the API under /api/v1.
func (s *TicketServer) Handler() http.Handler {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(s.timeout))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Handle("/metrics", metrics.Handler())
	r.Mount("/api/v1", s.Router())

	return r
}

// Router returns the API routes for embedding in other servers.
func (s *TicketServer) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)

	r.Get("/tickets", s.handleList)
	r.Get("/tickets/export.xlsx", s.handleExport)
	r.Get("/tickets/{id}", s.handleGet)
	r.Delete("/tickets/{id}", s.handleDelete)
	r.Post("/tickets/pdf", s.handleUploadPDF)
	r.Post("/tickets/qr", s.handleSubmitQR)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *TicketServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ticket API starting", "addr", s.addr, "auth", s.authEnabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *TicketServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *TicketServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *TicketServer) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.wallet.List())
}

func (s *TicketServer) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.wallet.Get(chi.URLParam(r, "id"))
	if errors.Is(err, wallet.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *TicketServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.wallet.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, wallet.ErrNotFound) {
		writeError(w, http.StatusNotFound, "ticket not found")
		return
	}
	if err != nil {
		s.logger.Error("delete ticket", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save tickets")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TicketServer) handleExport(w http.ResponseWriter, r *http.Request) {
	b, err := s.exporter.TicketsXLSX(s.wallet.List())
	if err != nil {
		s.logger.Error("export tickets", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// handleUploadPDF accepts a multipart form with a "file" field or a raw PDF body.
func (s *TicketServer) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	data, name, err := readUpload(r, s.maxUploadBytes)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	t, err := s.extractor.FromPDFReader(r.Context(), bytes.NewReader(data), int64(len(data)), name)
	if err != nil {
		if errors.Is(err, extract.ErrNoTicket) {
			writeError(w, http.StatusUnprocessableEntity, msgParseFailed)
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	if err := s.wallet.Add(r.Context(), t); err != nil {
		s.logger.Error("save uploaded ticket", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save tickets")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func readUpload(r *http.Request, maxBytes int64) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		return data, "upload.pdf", err
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", err
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("file field is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	return data, hdr.Filename, err
}

// QRRequest is the JSON body for QR submissions.
type QRRequest struct {
	Text string `json:"text"`
}

// handleSubmitQR accepts {"text": ...} or a text/plain body holding the decoded QR string.
func (s *TicketServer) handleSubmitQR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var text string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req QRRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
			return
		}
		text = req.Text
	} else {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		text = string(b)
	}

	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	tickets, err := s.extractor.FromQR(r.Context(), text)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, msgParseFailed)
		return
	}
	if len(tickets) == 0 {
		writeError(w, http.StatusUnprocessableEntity, msgNoPassengers)
		return
	}

	if err := s.wallet.Add(r.Context(), tickets...); err != nil {
		s.logger.Error("save scanned tickets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save tickets")
		return
	}
	writeJSON(w, http.StatusCreated, tickets)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
