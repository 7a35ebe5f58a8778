// Package ticket defines the e-ticket record shared by the PDF and QR extraction pipelines.
package ticket

import (
	"time"

	"github.com/google/uuid"
)

// Unknown is stored in TrainName and Class when extraction yields nothing.
const Unknown = "Unknown"

// uploadedAtLayout matches the ISO-8601 form persisted by earlier clients (millisecond precision, Z suffix).
const uploadedAtLayout = "2006-01-02T15:04:05.000Z"

// Ticket is one passenger's reservation on one journey.
// Empty string means "absent" for every text field.
// A Ticket is never modified after New returns it; consumers copy.
type Ticket struct {
	ID            string `json:"id"`
	PNR           string `json:"pnr"`
	TrainNumber   string `json:"trainNumber"`
	TrainName     string `json:"trainName"`
	From          string `json:"from"`
	To            string `json:"to"`
	DateOfJourney string `json:"dateOfJourney"`
	DepartureTime string `json:"departureTime"`
	Class         string `json:"class"`
	Coach         string `json:"coach"`
	SeatBerth     string `json:"seatBerth"`
	PassengerName string `json:"passengerName"`
	UploadedAt    string `json:"uploadedAt"`
}

// New returns a copy of fields stamped with a fresh ID and the current upload time.
// Any ID or UploadedAt already present in fields is replaced.
func New(fields Ticket) *Ticket {
	t := fields
	t.ID = uuid.NewString()
	t.UploadedAt = time.Now().UTC().Format(uploadedAtLayout)
	return &t
}

// Valid reports whether the load-bearing fields (PNR, train number, origin, destination) are all present.
func (t *Ticket) Valid() bool {
	return t != nil && t.PNR != "" && t.TrainNumber != "" && t.From != "" && t.To != ""
}

// MissingFields lists the load-bearing fields that are empty, by JSON name.
func (t *Ticket) MissingFields() []string {
	var missing []string
	if t.PNR == "" {
		missing = append(missing, "pnr")
	}
	if t.TrainNumber == "" {
		missing = append(missing, "trainNumber")
	}
	if t.From == "" {
		missing = append(missing, "from")
	}
	if t.To == "" {
		missing = append(missing, "to")
	}
	return missing
}

// UploadTime parses UploadedAt. The zero time is returned if it is malformed.
func (t *Ticket) UploadTime() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, t.UploadedAt)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// OrUnknown returns s, or Unknown when s is empty.
func OrUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
