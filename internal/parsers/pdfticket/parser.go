// Package pdfticket parses the text layer of railway e-ticket PDFs into one Ticket.
package pdfticket

import (
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

func getCompiler() (*patterns.Compiler, error) {
	grokOnce.Do(func() {
		grokCompiler = patterns.NewCompiler(Fields, nil)
		grokErr = grokCompiler.Compile()
	})
	return grokCompiler, grokErr
}

// Result represents a ticket parsed from a PDF text layer.
type Result struct {
	ID     string         `json:"payload_id,omitempty"`
	Source string         `json:"source,omitempty"`
	Ticket *ticket.Ticket `json:"ticket"`
}

func (r *Result) Type() string      { return "pdf_ticket" }
func (r *Result) PayloadID() string { return r.ID }

// Tickets returns the single parsed ticket.
func (r *Result) Tickets() []*ticket.Ticket { return []*ticket.Ticket{r.Ticket} }

// Extract runs every field of the table over normalised text.
// Absent fields are reported as such; nothing is defaulted here.
func Extract(text string) map[string]patterns.Capture {
	compiler, err := getCompiler()
	if err != nil {
		return nil
	}
	return compiler.ExtractAll(patterns.Normalize(text))
}

// Build turns extracted captures into a Ticket. It returns nil when any of
// PNR, train number, origin or destination is absent. Train name and class
// default to ticket.Unknown, every other field to "".
func Build(fields map[string]patterns.Capture) *ticket.Ticket {
	t := ticket.Ticket{
		PNR:           fields[FieldPNR].Value,
		TrainNumber:   fields[FieldTrainNumber].Value,
		TrainName:     fields[FieldTrainName].Or(ticket.Unknown),
		From:          fields[FieldFrom].Value,
		To:            fields[FieldTo].Value,
		DateOfJourney: fields[FieldDate].Value,
		DepartureTime: fields[FieldDeparture].Value,
		Class:         fields[FieldClass].Or(ticket.Unknown),
		Coach:         fields[FieldCoach].Value,
		SeatBerth:     fields[FieldSeatBerth].Value,
		PassengerName: fields[FieldPassengerName].Value,
	}
	if !t.Valid() {
		return nil
	}
	return ticket.New(t)
}

// ParseText extracts one ticket from the concatenated text of a PDF.
// It returns nil when the text does not carry a valid ticket.
func ParseText(text string) *ticket.Ticket {
	return Build(Extract(text))
}

// Parser parses PDF text-layer payloads.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string    { return "pdf_ticket" }
func (p *Parser) Kinds() []string { return []string{payload.KindPDF} }
func (p *Parser) Priority() int   { return 20 }

// QuickCheck looks for a PNR or confirmation label.
func (p *Parser) QuickCheck(text string) bool {
	upper := strings.ToUpper(text)
	return strings.Contains(upper, "PNR") || strings.Contains(upper, "CONFIRMATION")
}

func (p *Parser) Parse(pl *payload.Payload) registry.Result {
	if pl.Text == "" {
		return nil
	}

	t := ParseText(pl.Text)
	if t == nil {
		return nil
	}

	return &Result{
		ID:     pl.ID,
		Source: pl.Source,
		Ticket: t,
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
		trace.QuickCheck.Reason = "No PNR or Confirmation label found"
		return trace
	}

	compiler, err := getCompiler()
	if err != nil {
		trace.QuickCheck.Reason = "Failed to get compiler: " + err.Error()
		return trace
	}

	text := patterns.Normalize(pl.Text)
	captures := make(map[string]patterns.Capture, len(Fields))
	for _, name := range compiler.FieldNames() {
		ft := compiler.ExtractWithTrace(text, name)
		captures[name] = ft.Match.Capture()

		field := registry.FieldTrace{
			Field: name,
			Value: captures[name].Value,
		}
		for _, f := range ft.Formats {
			field.Formats = append(field.Formats, registry.FormatTrace{
				Name:     f.Name,
				Matched:  f.Matched,
				Pattern:  f.Pattern,
				Value:    f.Value,
				Captures: f.Captures,
			})
		}
		trace.Fields = append(trace.Fields, field)
	}

	t := Build(captures)
	if t == nil {
		partial := ticket.Ticket{
			PNR:         captures[FieldPNR].Value,
			TrainNumber: captures[FieldTrainNumber].Value,
			From:        captures[FieldFrom].Value,
			To:          captures[FieldTo].Value,
		}
		trace.Missing = partial.MissingFields()
	}
	trace.Matched = t != nil
	return trace
}
