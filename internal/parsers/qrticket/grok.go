// Package qrticket provides grok-style pattern definitions for decoded ticket QR strings.
package qrticket

import "eticket_parser/internal/patterns"

// Trip-level field names, shared by every passenger on the ticket.
const (
	FieldPNR         = "pnr"
	FieldTrainNumber = "train_number"
	FieldTrainName   = "train_name"
	FieldFrom        = "from"
	FieldTo          = "to"
	FieldDate        = "date"
	FieldDeparture   = "departure"
	FieldClass       = "class"
)

// Per-passenger field names.
const (
	FieldPassenger = "passenger"
	FieldStatus    = "status"
)

// TripFields are matched once against the whole QR string.
// QR payloads are comma-delimited "Key:Value" pairs, so values run up to the next comma.
var TripFields = []patterns.Field{
	{Name: FieldPNR, Formats: []patterns.Format{
		{Name: "pnr_no", Pattern: `PNR No\.{KV}(?P<value>{DIGITS})`},
	}},
	{Name: FieldTrainNumber, Formats: []patterns.Format{
		{Name: "train_no", Pattern: `Train No\.{KV}(?P<value>{DIGITS})`},
	}},
	{Name: FieldTrainName, Formats: []patterns.Format{
		{Name: "train_name", Pattern: `Train Name{KV}(?P<value>{VALUE})`},
	}},
	{Name: FieldFrom, Formats: []patterns.Format{
		{Name: "from", Pattern: `From{KV}(?P<value>{VALUE})`},
	}},
	{Name: FieldTo, Formats: []patterns.Format{
		{Name: "to", Pattern: `To{KV}(?P<value>{VALUE})`},
	}},
	{Name: FieldDate, Formats: []patterns.Format{
		{Name: "date_of_journey", Pattern: `Date Of Journey{KV}(?P<value>{VALUE})`},
	}},
	{Name: FieldDeparture, Formats: []patterns.Format{
		// Example: Scheduled Departure:25-Mar-2026 19:05 (only the time is kept)
		{Name: "scheduled_departure", Pattern: `Scheduled Departure{KV}{TOKEN} (?P<value>{TIME})`},
	}},
	{Name: FieldClass, Formats: []patterns.Format{
		{Name: "class", Pattern: `Class{KV}(?P<value>{VALUE})`},
	}},
}

// BlockFields are matched against one passenger block at a time.
var BlockFields = []patterns.Field{
	{Name: FieldPassenger, Formats: []patterns.Format{
		// Example: Passenger Name:Jane Doe, Gender:F, Age:30, Status:CNFB1/50MB
		// A block ends at the next passenger, a Quota/Train/Ticket label or the end of text.
		{
			Name: "passenger_block",
			Pattern: `^Passenger Name{KV}(?P<name>{VALUE}),\s*Gender{KV}[^,]+,\s*Age{KV}\d+,\s*` +
				`Status{KV}(?P<status>{LVALUE})(?:,\s*)?(?:Quota|Train|Ticket|$)`,
			Fields: []string{"name", "status"},
		},
	}},
	{Name: FieldStatus, Formats: []patterns.Format{
		// Example: CNFB1/50MB -> coach B1, seat 50, berth MB
		{
			Name:    "confirmed",
			Pattern: `^CNF(?P<coach>{CODE})/(?P<seat>\d+)(?P<berth>[A-Z]+)$`,
			Fields:  []string{"coach", "seat", "berth"},
		},
	}},
}

// passengerMarker starts every passenger block.
const passengerMarker = `(?i)Passenger Name`
