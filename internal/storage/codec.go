package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"eticket_parser/internal/ticket"
)

// ErrCorrupt is returned when a stored document is not a valid ticket list.
var ErrCorrupt = errors.New("corrupt ticket document")

// ticketListSchema describes the persisted document. Only the identifier and
// the load-bearing fields are required; everything else may be absent.
const ticketListSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "pnr", "trainNumber", "from", "to"],
		"properties": {
			"id":            {"type": "string"},
			"pnr":           {"type": "string"},
			"trainNumber":   {"type": "string"},
			"trainName":     {"type": "string"},
			"from":          {"type": "string"},
			"to":            {"type": "string"},
			"dateOfJourney": {"type": "string"},
			"departureTime": {"type": "string"},
			"class":         {"type": "string"},
			"coach":         {"type": "string"},
			"seatBerth":     {"type": "string"},
			"passengerName": {"type": "string"},
			"uploadedAt":    {"type": "string"}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func getSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tickets.json", strings.NewReader(ticketListSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("tickets.json")
	})
	return schema, schemaErr
}

// EncodeTickets serialises the list in the persisted form. A nil list encodes as [].
func EncodeTickets(tickets []*ticket.Ticket) ([]byte, error) {
	if tickets == nil {
		tickets = []*ticket.Ticket{}
	}
	b, err := json.Marshal(tickets)
	if err != nil {
		return nil, fmt.Errorf("marshal tickets: %w", err)
	}
	return b, nil
}

// DecodeTickets validates and parses a persisted document.
// A blank document is an empty list.
func DecodeTickets(b []byte) ([]*ticket.Ticket, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []*ticket.Ticket{}, nil
	}

	s, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := s.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	tickets := []*ticket.Ticket{}
	if err := json.Unmarshal(b, &tickets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tickets, nil
}
