// Package qrticket parses decoded railway ticket QR strings into one Ticket per passenger.
package qrticket

import (
	"regexp"
	"strings"
	"sync"

	"eticket_parser/internal/patterns"
	"eticket_parser/internal/payload"
	"eticket_parser/internal/registry"
	"eticket_parser/internal/ticket"
)

// Grok compiler singleton.
var (
	grokCompiler *patterns.Compiler
	grokOnce     sync.Once
	grokErr      error
)

var markerRe = regexp.MustCompile(passengerMarker)

func getCompiler() (*patterns.Compiler, error) {
	grokOnce.Do(func() {
		fields := make([]patterns.Field, 0, len(TripFields)+len(BlockFields))
		fields = append(fields, TripFields...)
		fields = append(fields, BlockFields...)
		grokCompiler = patterns.NewCompiler(fields, nil)
		grokErr = grokCompiler.Compile()
	})
	return grokCompiler, grokErr
}

// Passenger is one passenger block of a QR string.
type Passenger struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Seat   Seat   `json:"seat"`
}

// Trip holds the fields shared by every passenger on the ticket.
// Absent train name and class are already defaulted to ticket.Unknown.
type Trip struct {
	PNR           string `json:"pnr"`
	TrainNumber   string `json:"train_number"`
	TrainName     string `json:"train_name"`
	From          string `json:"from"`
	To            string `json:"to"`
	DateOfJourney string `json:"date_of_journey"`
	DepartureTime string `json:"departure_time"`
	Class         string `json:"class"`
}

// ExtractTrip reads the trip-level fields from normalised text.
func ExtractTrip(text string) Trip {
	compiler, err := getCompiler()
	if err != nil {
		return Trip{TrainName: ticket.Unknown, Class: ticket.Unknown}
	}
	return Trip{
		PNR:           compiler.Extract(text, FieldPNR).Value,
		TrainNumber:   compiler.Extract(text, FieldTrainNumber).Value,
		TrainName:     compiler.Extract(text, FieldTrainName).Or(ticket.Unknown),
		From:          compiler.Extract(text, FieldFrom).Value,
		To:            compiler.Extract(text, FieldTo).Value,
		DateOfJourney: compiler.Extract(text, FieldDate).Value,
		DepartureTime: compiler.Extract(text, FieldDeparture).Value,
		Class:         compiler.Extract(text, FieldClass).Or(ticket.Unknown),
	}
}

// ExtractPassengers returns every well-formed passenger block of normalised text, in order.
// Malformed blocks are skipped.
func ExtractPassengers(text string) []Passenger {
	compiler, err := getCompiler()
	if err != nil {
		return nil
	}

	var passengers []Passenger
	for _, block := range patterns.Blocks(text, markerRe) {
		m := compiler.Match(block, FieldPassenger)
		if m == nil {
			continue
		}
		status := m.Captures["status"]
		passengers = append(passengers, Passenger{
			Name:   m.Captures["name"],
			Status: status,
			Seat:   DecomposeStatus(status),
		})
	}
	return passengers
}

// ParseText builds one Ticket per passenger block. Every ticket gets its own ID
// and upload time and shares the trip fields. No passengers yields an empty,
// non-nil slice. Tickets are not validated individually.
func ParseText(text string) []*ticket.Ticket {
	text = patterns.Normalize(text)
	trip := ExtractTrip(text)

	tickets := make([]*ticket.Ticket, 0)
	for _, p := range ExtractPassengers(text) {
		tickets = append(tickets, ticket.New(ticket.Ticket{
			PNR:           trip.PNR,
			TrainNumber:   trip.TrainNumber,
			TrainName:     trip.TrainName,
			From:          trip.From,
			To:            trip.To,
			DateOfJourney: trip.DateOfJourney,
			DepartureTime: trip.DepartureTime,
			Class:         trip.Class,
			Coach:         p.Seat.Coach,
			SeatBerth:     p.Seat.SeatBerth,
			PassengerName: p.Name,
		}))
	}
	return tickets
}

// Result represents the tickets parsed from one QR string.
type Result struct {
	ID      string           `json:"payload_id,omitempty"`
	Source  string           `json:"source,omitempty"`
	Trip    Trip             `json:"trip"`
	Records []*ticket.Ticket `json:"tickets"`
}

func (r *Result) Type() string              { return "qr_ticket" }
func (r *Result) PayloadID() string         { return r.ID }
func (r *Result) Tickets() []*ticket.Ticket { return r.Records }

// Parser parses decoded QR payloads.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "qr_ticket" }
func (p *Parser) Kinds() []string { return []string{payload.KindQR} }
func (p *Parser) Priority() int   { return 10 }

// QuickCheck requires at least one passenger label.
func (p *Parser) QuickCheck(text string) bool {
	return strings.Contains(strings.ToUpper(text), "PASSENGER NAME")
}

// Parse returns nil when the payload holds no passenger blocks, so that
// dispatch can fall through to other parsers.
func (p *Parser) Parse(pl *payload.Payload) registry.Result {
	if pl.Text == "" {
		return nil
	}

	tickets := ParseText(pl.Text)
	if len(tickets) == 0 {
		return nil
	}

	return &Result{
		ID:      pl.ID,
		Source:  pl.Source,
		Trip:    ExtractTrip(patterns.Normalize(pl.Text)),
		Records: tickets,
	}
}

// ParseWithTrace implements registry.Traceable for detailed debugging.
func (p *Parser) ParseWithTrace(pl *payload.Payload) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
	}

	quickCheckPassed := p.QuickCheck(pl.Text)
	trace.QuickCheck = &registry.QuickCheck{
		Passed: quickCheckPassed,
	}

	if !quickCheckPassed {
		trace.QuickCheck.Reason = "No Passenger Name label found"
		return trace
	}

	compiler, err := getCompiler()
	if err != nil {
		trace.QuickCheck.Reason = "Failed to get compiler: " + err.Error()
		return trace
	}

	text := patterns.Normalize(pl.Text)
	for _, f := range TripFields {
		trace.Fields = append(trace.Fields, fieldTrace(compiler, text, f.Name))
	}

	blocks := patterns.Blocks(text, markerRe)
	trace.Blocks = len(blocks)
	matched := 0
	for _, block := range blocks {
		ft := fieldTrace(compiler, block, FieldPassenger)
		if ft.Value != "" {
			matched++
		}
		trace.Fields = append(trace.Fields, ft)
	}

	trace.Matched = matched > 0
	return trace
}

func fieldTrace(c *patterns.Compiler, text, field string) registry.FieldTrace {
	ft := c.ExtractWithTrace(text, field)
	out := registry.FieldTrace{
		Field: field,
		Value: ft.Match.Capture().Value,
	}
	for _, f := range ft.Formats {
		out.Formats = append(out.Formats, registry.FormatTrace{
			Name:     f.Name,
			Matched:  f.Matched,
			Pattern:  f.Pattern,
			Value:    f.Value,
			Captures: f.Captures,
		})
	}
	return out
}
