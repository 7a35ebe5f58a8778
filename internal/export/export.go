// Package export writes saved tickets to spreadsheet workbooks.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"eticket_parser/internal/ticket"
)

// Sheet is the worksheet holding one row per ticket.
const Sheet = "Tickets"

// Headers are the column titles, in column order.
var Headers = []string{
	"PNR",
	"Train No",
	"Train Name",
	"From",
	"To",
	"Date of Journey",
	"Departure",
	"Class",
	"Coach",
	"Seat/Berth",
	"Passenger",
	"Uploaded At",
	"ID",
}

func row(t *ticket.Ticket) []string {
	return []string{
		t.PNR,
		t.TrainNumber,
		t.TrainName,
		t.From,
		t.To,
		t.DateOfJourney,
		t.DepartureTime,
		t.Class,
		t.Coach,
		t.SeatBerth,
		t.PassengerName,
		t.UploadedAt,
		t.ID,
	}
}

// Service produces XLSX bytes for ticket lists.
type Service struct {
	logger *slog.Logger
}

// NewService creates a Service. A nil logger falls back to slog.Default().
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// TicketsXLSX returns a workbook with one row per ticket, in the given order.
func (s *Service) TicketsXLSX(tickets []*ticket.Ticket) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(Sheet); index == -1 {
		if _, err := f.NewSheet(Sheet); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(Sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet so the workbook opens on the ticket list.
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(Sheet, cell, h)
	}

	for r, t := range tickets {
		for c, v := range row(t) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(Sheet, cell, v)
		}
	}

	_ = f.SetColWidth(Sheet, "A", "B", 14) // pnr, train no
	_ = f.SetColWidth(Sheet, "C", "E", 24) // train name, stations
	_ = f.SetColWidth(Sheet, "F", "J", 14)
	_ = f.SetColWidth(Sheet, "K", "K", 28) // passenger
	_ = f.SetColWidth(Sheet, "L", "M", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(tickets),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
