package qrticket

import (
	"fmt"
	"strings"
)

// Seat is the coach and seat/berth decoded from a reservation status token.
type Seat struct {
	Coach     string `json:"coach"`
	SeatBerth string `json:"seat_berth"`
	Confirmed bool   `json:"confirmed"`
}

// DecomposeStatus splits a status token such as "CNFB1/50MB" into coach "B1"
// and seat/berth "50 (MB)". Tokens in any other state (waitlisted, RAC, ...)
// are kept verbatim in SeatBerth with an empty coach.
func DecomposeStatus(status string) Seat {
	status = strings.TrimSpace(status)

	compiler, err := getCompiler()
	if err != nil {
		return Seat{SeatBerth: status}
	}

	m := compiler.Match(status, FieldStatus)
	if m == nil {
		return Seat{SeatBerth: status}
	}

	return Seat{
		Coach:     m.Captures["coach"],
		SeatBerth: fmt.Sprintf("%s (%s)", m.Captures["seat"], m.Captures["berth"]),
		Confirmed: true,
	}
}
