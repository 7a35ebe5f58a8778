package ticket

import (
	"sort"
	"strings"
	"time"
)

// journeyDateLayouts are tried in order. Month-name forms come first because
// QR payloads carry dates such as 25-Mar-2026; month names match case-insensitively.
var journeyDateLayouts = []string{
	"2-Jan-2006",
	"2/Jan/2006",
	"02-01-2006",
	"02/01/2006",
	"02-01-06",
	"02/01/06",
	"2006-01-02",
	time.RFC3339,
}

// ParseJourneyDate parses a date of journey as printed on a ticket.
func ParseJourneyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range journeyDateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// SortByJourney orders tickets by date of journey, earliest first.
// Tickets whose date cannot be parsed keep their relative order after all dated ones.
func SortByJourney(tickets []*Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		di, okI := ParseJourneyDate(tickets[i].DateOfJourney)
		dj, okJ := ParseJourneyDate(tickets[j].DateOfJourney)
		switch {
		case okI && okJ:
			return di.Before(dj)
		case okI:
			return true
		default:
			return false
		}
	})
}
