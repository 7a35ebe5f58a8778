// Package pdfticket provides grok-style pattern definitions for ticket PDF text layers.
package pdfticket

import "eticket_parser/internal/patterns"

// Field names.
const (
	FieldPNR           = "pnr"
	FieldTrainNumber   = "train_number"
	FieldTrainName     = "train_name"
	FieldFrom          = "from"
	FieldTo            = "to"
	FieldDate          = "date"
	FieldDeparture     = "departure"
	FieldCoach         = "coach"
	FieldSeatBerth     = "seat_berth"
	FieldPassengerName = "passenger_name"
	FieldClass         = "class"
)

// Fields is the ranked pattern table for printed e-ticket layouts.
// Within a field the first format whose value group is non-empty wins.
// Labels tolerate trailing words ("Train No." / "Train Number") and an optional ':' or '-'.
var Fields = []patterns.Field{
	{Name: FieldPNR, Formats: []patterns.Format{
		// Example: PNR: 4521367890
		{Name: "pnr_label", Pattern: `PNR\s*{SEP}(?P<value>{PNR})`},
		// Example: Confirmation Number - 4521367890
		{Name: "confirmation_label", Pattern: `Confirmation{TAIL}{SEP}(?P<value>{PNR})`},
	}},
	{Name: FieldTrainNumber, Formats: []patterns.Format{
		// Example: Train No: 12951
		{Name: "train_no", Pattern: `Train\s*No{TAIL}{SEP}(?P<value>{TRAIN_NO})`},
		{Name: "train_number", Pattern: `Train\s*Number{TAIL}{SEP}(?P<value>{TRAIN_NO})`},
	}},
	{Name: FieldTrainName, Formats: []patterns.Format{
		// Example: Train Name: MUMBAI RAJDHANI From: ...
		{Name: "before_label", Pattern: `Train\s*Name{TAIL}{SEP}(?P<value>{WORDS})(?:Depart|From|Class)`},
		// Example: Train/Name MUMBAI RAJDHANI 25-03-2026
		{Name: "before_date", Pattern: `Train[\s/]*Name{TAIL}{SEP}(?P<value>{WORDS})\d{2}[-/]`},
	}},
	{Name: FieldFrom, Formats: []patterns.Format{
		// Example: From: NEW DELHI To: ...
		{Name: "from_label", Pattern: `From{TAIL}{SEP}(?P<value>{STATION})(?:To|Dept)`},
		{Name: "boarding_label", Pattern: `Boarding{TAIL}{SEP}(?P<value>{STATION})(?:To|Date)`},
	}},
	{Name: FieldTo, Formats: []patterns.Format{
		// Example: To: MUMBAI CENTRAL Date of Journey: ...
		{Name: "to_label", Pattern: `To{TAIL}{SEP}(?P<value>{STATION})(?:Date|Dept|Class)`},
		{Name: "destination_label", Pattern: `Destination{TAIL}{SEP}(?P<value>{STATION})Date`},
	}},
	{Name: FieldDate, Formats: []patterns.Format{
		// Example: Date of Journey: 25-03-2026
		{Name: "date_label", Pattern: `Date{TAIL}{SEP}(?P<value>{DATE})`},
		{Name: "journey_label", Pattern: `Journey{TAIL}{SEP}(?P<value>{DATE})`},
	}},
	{Name: FieldDeparture, Formats: []patterns.Format{
		// Example: Departure: 16:55
		{Name: "depart_label", Pattern: `Depart{TAIL}{SEP}(?P<value>{TIME})`},
		{Name: "departure_label", Pattern: `Departure{TAIL}{SEP}(?P<value>{TIME})`},
	}},
	{Name: FieldCoach, Formats: []patterns.Format{
		{Name: "coach_label", Pattern: `Coach{TAIL}{SEP}(?P<value>{CODE})`},
	}},
	{Name: FieldSeatBerth, Formats: []patterns.Format{
		{Name: "seat_or_berth", Pattern: `(?:Seat|Berth){TAIL}{SEP}(?P<value>{CODE})`},
	}},
	{Name: FieldPassengerName, Formats: []patterns.Format{
		// Example: Passenger Name: ASHA VERMA Age: 34
		{Name: "passenger_label", Pattern: `Passenger{TAIL}{SEP}(?P<value>{NAME})(?:Age|Sex|Class|Coach|$)`},
		{Name: "name_label", Pattern: `Name{TAIL}{SEP}(?P<value>{NAME})(?:Age|Sex|Berth|Class|$)`},
	}},
	// Class has a single dedicated pattern. The label is not followed by trailing
	// words here, and '=' is accepted as a separator.
	{Name: FieldClass, Formats: []patterns.Format{
		{Name: "class_label", Pattern: `Class\s*[:=]?\s*(?P<value>{CODE})`},
	}},
}
