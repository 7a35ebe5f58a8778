package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"eticket_parser/internal/ticket"
)

func sampleTickets() []*ticket.Ticket {
	return []*ticket.Ticket{
		{
			ID: "a1", PNR: "1234567890", TrainNumber: "12345", TrainName: "Rajdhani",
			From: "DELHI", To: "MUMBAI", DateOfJourney: "25-Mar-2026", DepartureTime: "19:05",
			Class: "3A", Coach: "B1", SeatBerth: "50 (MB)", PassengerName: "Jane Doe",
			UploadedAt: "2026-03-20T10:00:00.000Z",
		},
		{
			ID: "a2", PNR: "1234567890", TrainNumber: "12345", TrainName: "Rajdhani",
			From: "DELHI", To: "MUMBAI", DateOfJourney: "25-Mar-2026", DepartureTime: "19:05",
			Class: "3A", Coach: "", SeatBerth: "WL/12", PassengerName: "Baby Doe",
			UploadedAt: "2026-03-20T10:00:00.000Z",
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	want := sampleTickets()

	b, err := EncodeTickets(want)
	if err != nil {
		t.Fatalf("EncodeTickets error: %v", err)
	}
	if !strings.Contains(string(b), `"seatBerth":"50 (MB)"`) {
		t.Errorf("encoded document lacks camelCase keys: %s", b)
	}

	got, err := DecodeTickets(b)
	if err != nil {
		t.Fatalf("DecodeTickets error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestDecodeTickets(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    int
		corrupt bool
	}{
		{"blank", "  ", 0, false},
		{"empty list", "[]", 0, false},
		{"nil list", "null", 0, true},
		{"not json", "{oops", 0, true},
		{"object", `{"id":"x"}`, 0, true},
		{"missing pnr", `[{"id":"x","trainNumber":"1","from":"A","to":"B"}]`, 0, true},
		{"wrong type", `[{"id":"x","pnr":1,"trainNumber":"1","from":"A","to":"B"}]`, 0, true},
		{"minimal", `[{"id":"x","pnr":"","trainNumber":"1","from":"A","to":"B"}]`, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTickets([]byte(tt.doc))
			if tt.corrupt {
				if !errors.Is(err, ErrCorrupt) {
					t.Errorf("err = %v, want ErrCorrupt", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTickets error: %v", err)
			}
			if got == nil || len(got) != tt.want {
				t.Errorf("len = %d (nil=%v), want %d", len(got), got == nil, tt.want)
			}
		})
	}
}

func TestEncodeNil(t *testing.T) {
	b, err := EncodeTickets(nil)
	if err != nil {
		t.Fatalf("EncodeTickets error: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("EncodeTickets(nil) = %s, want []", b)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Load on empty store = %v, want empty list", got)
	}

	want := sampleTickets()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	// Overwrite to check the upsert path.
	if err := s.Save(ctx, want[:1]); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Reopen to make sure the list survives.
	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer s.Close()

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
}

func TestOpenSQLiteBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "wallet.db")

	b, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*SQLiteStore); !ok {
		t.Errorf("Open returned %T, want *SQLiteStore", b)
	}

	cfg.Backend = "floppy"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("Open with unknown backend succeeded")
	}
}
