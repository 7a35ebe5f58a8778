package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"eticket_parser/internal/metrics"
	"eticket_parser/internal/payload"
	"eticket_parser/internal/pdftext/pdftest"
)

const pdfText = "PNR: 4521367890 Train No: 12951 Train Name: MUMBAI RAJDHANI " +
	"From: NEW DELHI To: MUMBAI CENTRAL Date of Journey: 25-03-2026 Departure: 16:55 " +
	"Class: 3A Coach: B4 Seat: 32 Passenger Name: ASHA VERMA Age: 34"

const qrText = "PNR No.: 1234567890, Train No.: 12345, Train Name: Rajdhani, " +
	"From: DELHI, To: MUMBAI, Date Of Journey: 25-Mar-2026, " +
	"Scheduled Departure:25-Mar-2026 19:05, Class: 3A, " +
	"Passenger Name:Jane Doe, Gender:F, Age:30, Status:CNFB1/50MB"

type memArchive struct {
	mu       sync.Mutex
	attempts []Attempt
	err      error
}

func (a *memArchive) Record(_ context.Context, at Attempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, at)
	return a.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromPDFText(t *testing.T) {
	archive := &memArchive{}
	s := NewService(quietLogger(), WithArchive(archive))

	tk, err := s.FromPDFText(context.Background(), "ticket.pdf", pdfText)
	if err != nil {
		t.Fatalf("FromPDFText error: %v", err)
	}
	if tk.PNR != "4521367890" {
		t.Errorf("PNR = %q, want %q", tk.PNR, "4521367890")
	}

	if len(archive.attempts) != 1 {
		t.Fatalf("archived %d attempts, want 1", len(archive.attempts))
	}
	a := archive.attempts[0]
	if a.Outcome != metrics.OutcomeOK || a.Tickets != 1 || a.Origin != "ticket.pdf" {
		t.Errorf("attempt = %+v, want ok/1/ticket.pdf", a)
	}
	if a.ID == "" || a.At.IsZero() {
		t.Errorf("attempt ID/At not stamped: %+v", a)
	}
}

func TestFromPDFTextNoTicket(t *testing.T) {
	archive := &memArchive{}
	s := NewService(quietLogger(), WithArchive(archive))

	_, err := s.FromPDFText(context.Background(), "bad.pdf", "PNR: 4521367890 From: AGRA To: AGRA CANTT Class: SL")
	if !errors.Is(err, ErrNoTicket) {
		t.Fatalf("err = %v, want ErrNoTicket", err)
	}

	if len(archive.attempts) != 1 {
		t.Fatalf("archived %d attempts, want 1", len(archive.attempts))
	}
	a := archive.attempts[0]
	if a.Outcome != metrics.OutcomeNoTicket {
		t.Errorf("Outcome = %q, want %q", a.Outcome, metrics.OutcomeNoTicket)
	}
	if len(a.Missing) != 1 || a.Missing[0] != "trainNumber" {
		t.Errorf("Missing = %v, want [trainNumber]", a.Missing)
	}
}

func TestFromPDFReader(t *testing.T) {
	archive := &memArchive{}
	s := NewService(quietLogger(), WithArchive(archive))
	data := pdftest.Build(
		"PNR: 4521367890",
		"Train No: 12951",
		"From: NEW DELHI",
		"To: MUMBAI",
		"Date: 25-03-2026",
	)

	tk, err := s.FromPDFReader(context.Background(), bytes.NewReader(data), int64(len(data)), "upload.pdf")
	if err != nil {
		t.Fatalf("FromPDFReader error: %v", err)
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"PNR", tk.PNR, "4521367890"},
		{"TrainNumber", tk.TrainNumber, "12951"},
		{"From", tk.From, "NEW DELHI"},
		{"To", tk.To, "MUMBAI"},
		{"DateOfJourney", tk.DateOfJourney, "25-03-2026"},
		{"TrainName", tk.TrainName, "Unknown"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}

	if len(archive.attempts) != 1 || archive.attempts[0].Outcome != metrics.OutcomeOK {
		t.Errorf("attempts = %+v, want one ok attempt", archive.attempts)
	}
}

func TestFromPDF(t *testing.T) {
	s := NewService(quietLogger())
	path := t.TempDir() + "/ticket.pdf"
	if err := os.WriteFile(path, pdftest.Build(pdfText), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	tk, err := s.FromPDF(context.Background(), path)
	if err != nil {
		t.Fatalf("FromPDF error: %v", err)
	}
	if tk.PNR != "4521367890" || tk.TrainName != "MUMBAI RAJDHANI" || tk.SeatBerth != "32" {
		t.Errorf("ticket = %+v", tk)
	}
}

func TestFromPDFReaderUnreadable(t *testing.T) {
	s := NewService(quietLogger())
	data := []byte("%PDF-1.4 truncated")

	_, err := s.FromPDFReader(context.Background(), bytes.NewReader(data), int64(len(data)), "upload.pdf")
	if !errors.Is(err, ErrNoTicket) {
		t.Errorf("err = %v, want ErrNoTicket", err)
	}
}

func TestFromPDFMissingFile(t *testing.T) {
	s := NewService(quietLogger())

	_, err := s.FromPDF(context.Background(), t.TempDir()+"/nope.pdf")
	if !errors.Is(err, ErrNoTicket) {
		t.Errorf("err = %v, want ErrNoTicket", err)
	}
}

func TestFromQR(t *testing.T) {
	archive := &memArchive{err: errors.New("archive down")}
	s := NewService(quietLogger(), WithArchive(archive))

	tickets, err := s.FromQR(context.Background(), qrText)
	if err != nil {
		t.Fatalf("FromQR error: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("len(tickets) = %d, want 1", len(tickets))
	}
	if tickets[0].SeatBerth != "50 (MB)" {
		t.Errorf("SeatBerth = %q, want %q", tickets[0].SeatBerth, "50 (MB)")
	}

	tickets, err = s.FromQR(context.Background(), "PNR No.: 1234567890")
	if err != nil {
		t.Fatalf("FromQR error: %v", err)
	}
	if tickets == nil || len(tickets) != 0 {
		t.Errorf("tickets = %v, want empty slice", tickets)
	}
	if got := archive.attempts[len(archive.attempts)-1].Outcome; got != metrics.OutcomeNoPassengers {
		t.Errorf("Outcome = %q, want %q", got, metrics.OutcomeNoPassengers)
	}
}

func TestFromPayload(t *testing.T) {
	s := NewService(quietLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		p       *payload.Payload
		want    int
		wantErr bool
	}{
		{"pdf kind", &payload.Payload{Kind: payload.KindPDF, Text: pdfText}, 1, false},
		{"qr kind", &payload.Payload{Kind: payload.KindQR, Text: qrText}, 1, false},
		{"unknown kind qr text", &payload.Payload{Text: qrText}, 1, false},
		{"unknown kind pdf text", &payload.Payload{Text: pdfText}, 1, false},
		{"unknown kind garbage", &payload.Payload{Text: "hello"}, 0, true},
		{"pdf kind invalid", &payload.Payload{Kind: payload.KindPDF, Text: "PNR: 1"}, 0, true},
		{"nil payload", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickets, err := s.FromPayload(ctx, tt.p)
			if tt.wantErr {
				if !errors.Is(err, ErrNoTicket) {
					t.Errorf("err = %v, want ErrNoTicket", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromPayload error: %v", err)
			}
			if len(tickets) != tt.want {
				t.Errorf("len(tickets) = %d, want %d", len(tickets), tt.want)
			}
		})
	}
}
