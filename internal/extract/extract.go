// Package extract is the boundary between raw inputs (PDF files, QR strings,
// queued payloads) and the ticket parsers. Every failure below this boundary,
// including a panic in the PDF reader, is logged and reported as ErrNoTicket.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"eticket_parser/internal/metrics"
	"eticket_parser/internal/parsers/pdfticket"
	"eticket_parser/internal/parsers/qrticket"
	"eticket_parser/internal/patterns"
	"eticket_parser/internal/payload"
	"eticket_parser/internal/pdftext"
	"eticket_parser/internal/registry"
	"eticket_parser/internal/ticket"
)

// ErrNoTicket is returned when an input cannot be turned into a valid ticket.
// The PDF could not be read, or the text lacked a load-bearing field.
var ErrNoTicket = errors.New("no valid ticket found")

// Attempt describes one extraction for the archive.
type Attempt struct {
	ID         string
	Source     string // payload kind: pdf, qr or empty
	Origin     string // file name, device or subject
	Outcome    string // one of the metrics.Outcome* values
	Tickets    int
	Missing    []string // load-bearing fields that were absent
	TextLength int
	Duration   time.Duration
	At         time.Time
	Err        string
}

// Archive stores extraction attempts for later analysis.
type Archive interface {
	Record(ctx context.Context, a Attempt) error
}

// Service extracts tickets from raw inputs.
type Service struct {
	logger   *slog.Logger
	archive  Archive
	registry *registry.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithArchive records every attempt in a.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithRegistry sets the registry used for payloads of unknown kind.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// NewService creates a Service. A nil logger falls back to slog.Default().
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		logger:   logger,
		registry: registry.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.Sort()
	return s
}

// FromPDF extracts one ticket from the PDF file at path.
func (s *Service) FromPDF(ctx context.Context, path string) (*ticket.Ticket, error) {
	start := time.Now()
	text, err := pdftext.ExtractFile(ctx, path)
	if err != nil {
		return nil, s.pdfFailure(ctx, path, start, err)
	}
	return s.FromPDFText(ctx, path, text)
}

// FromPDFReader extracts one ticket from a PDF held in r. name is only used for logging.
func (s *Service) FromPDFReader(ctx context.Context, r io.ReaderAt, size int64, name string) (*ticket.Ticket, error) {
	start := time.Now()
	text, err := pdftext.ExtractReader(ctx, r, size)
	if err != nil {
		return nil, s.pdfFailure(ctx, name, start, err)
	}
	return s.FromPDFText(ctx, name, text)
}

func (s *Service) pdfFailure(ctx context.Context, origin string, start time.Time, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	s.logger.Warn("pdf text extraction failed", "origin", origin, "error", err)
	s.finish(ctx, Attempt{
		Source:   payload.KindPDF,
		Origin:   origin,
		Outcome:  metrics.OutcomeError,
		Duration: time.Since(start),
		Err:      err.Error(),
	})
	return fmt.Errorf("%w: %v", ErrNoTicket, err)
}

// FromPDFText extracts one ticket from the already concatenated text layer of a PDF.
func (s *Service) FromPDFText(ctx context.Context, origin, text string) (t *ticket.Ticket, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pdf ticket parser panicked", "origin", origin, "panic", r)
			t, err = nil, fmt.Errorf("%w: %v", ErrNoTicket, r)
		}
	}()

	s.logger.Debug("pdf text extracted", "origin", origin, "length", len(text))

	fields := pdfticket.Extract(text)
	for _, name := range fieldOrder(fields) {
		s.logger.Debug("pdf field", "origin", origin, "field", name,
			"found", fields[name].Found(), "format", fields[name].Format, "value", fields[name].Value)
	}

	t = pdfticket.Build(fields)
	attempt := Attempt{
		Source:     payload.KindPDF,
		Origin:     origin,
		TextLength: len(text),
	}
	if t == nil {
		partial := ticket.Ticket{
			PNR:         fields[pdfticket.FieldPNR].Value,
			TrainNumber: fields[pdfticket.FieldTrainNumber].Value,
			From:        fields[pdfticket.FieldFrom].Value,
			To:          fields[pdfticket.FieldTo].Value,
		}
		attempt.Missing = partial.MissingFields()
		attempt.Outcome = metrics.OutcomeNoTicket
		attempt.Duration = time.Since(start)
		s.logger.Info("pdf validation failed", "origin", origin, "missing", attempt.Missing)
		s.finish(ctx, attempt)
		return nil, ErrNoTicket
	}

	attempt.Outcome = metrics.OutcomeOK
	attempt.Tickets = 1
	attempt.Duration = time.Since(start)
	s.logger.Info("pdf ticket extracted", "origin", origin, "pnr", t.PNR, "train", t.TrainNumber)
	s.finish(ctx, attempt)
	return t, nil
}

// FromQR extracts one ticket per passenger from a decoded QR string.
// A string without passenger blocks yields an empty slice and a nil error.
func (s *Service) FromQR(ctx context.Context, text string) ([]*ticket.Ticket, error) {
	return s.fromQR(ctx, "", text)
}

func (s *Service) fromQR(ctx context.Context, origin, text string) (tickets []*ticket.Ticket, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("qr ticket parser panicked", "origin", origin, "panic", r)
			tickets, err = nil, fmt.Errorf("%w: %v", ErrNoTicket, r)
		}
	}()

	tickets = qrticket.ParseText(text)

	attempt := Attempt{
		Source:     payload.KindQR,
		Origin:     origin,
		Outcome:    metrics.OutcomeOK,
		Tickets:    len(tickets),
		TextLength: len(text),
		Duration:   time.Since(start),
	}
	if len(tickets) == 0 {
		attempt.Outcome = metrics.OutcomeNoPassengers
		s.logger.Info("qr payload has no passenger blocks", "origin", origin, "length", len(text))
	} else {
		s.logger.Info("qr tickets extracted", "origin", origin, "pnr", tickets[0].PNR, "passengers", len(tickets))
		// Trip fields are shared, so the first ticket speaks for all of them.
		// Passenger tickets are kept regardless; only note the gap.
		if missing := tickets[0].MissingFields(); len(missing) > 0 {
			attempt.Missing = missing
			s.logger.Debug("qr tickets missing fields", "origin", origin, "missing", missing)
		}
	}
	s.finish(ctx, attempt)
	return tickets, nil
}

// FromPayload routes a payload by kind. Payloads of unknown kind go through
// the parser registry and the first parser that produces tickets wins.
func (s *Service) FromPayload(ctx context.Context, p *payload.Payload) ([]*ticket.Ticket, error) {
	if p == nil {
		return nil, ErrNoTicket
	}

	switch p.Kind {
	case payload.KindPDF:
		t, err := s.FromPDFText(ctx, p.Source, p.Text)
		if err != nil {
			return nil, err
		}
		return []*ticket.Ticket{t}, nil

	case payload.KindQR:
		return s.fromQR(ctx, p.Source, p.Text)
	}

	start := time.Now()
	result := s.registry.DispatchFirst(p)
	attempt := Attempt{
		Source:     p.Kind,
		Origin:     p.Source,
		TextLength: len(p.Text),
	}
	if result == nil {
		attempt.Outcome = metrics.OutcomeNoTicket
		attempt.Duration = time.Since(start)
		s.logger.Info("no parser matched payload", "id", p.ID, "kind", p.Kind)
		s.finish(ctx, attempt)
		return nil, ErrNoTicket
	}

	tickets := result.Tickets()
	attempt.Outcome = metrics.OutcomeOK
	attempt.Tickets = len(tickets)
	attempt.Duration = time.Since(start)
	s.logger.Info("payload parsed", "id", p.ID, "parser", result.Type(), "tickets", len(tickets))
	s.finish(ctx, attempt)
	return tickets, nil
}

// finish records metrics and archives the attempt. Archive failures are logged only.
func (s *Service) finish(ctx context.Context, a Attempt) {
	source := a.Source
	if source == "" {
		source = "unknown"
	}
	metrics.Extractions.WithLabelValues(source, a.Outcome).Inc()
	metrics.TicketsExtracted.WithLabelValues(source).Add(float64(a.Tickets))
	metrics.ExtractionDuration.WithLabelValues(source).Observe(a.Duration.Seconds())

	if s.archive == nil {
		return
	}
	a.ID = uuid.NewString()
	a.At = time.Now().UTC()
	if err := s.archive.Record(ctx, a); err != nil {
		s.logger.Warn("failed to archive extraction attempt", "error", err)
	}
}

// fieldOrder lists the extracted field names in table order.
func fieldOrder(fields map[string]patterns.Capture) []string {
	names := make([]string, 0, len(fields))
	for _, f := range pdfticket.Fields {
		if _, ok := fields[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}
