// Package metrics holds the Prometheus collectors for ticket extraction.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extraction outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNoTicket     = "no_ticket"
	OutcomeNoPassengers = "no_passengers"
	OutcomeError        = "error"
)

var (
	Extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eticket_extractions_total",
		Help: "Extraction attempts by source and outcome",
	}, []string{"source", "outcome"})

	TicketsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eticket_tickets_extracted_total",
		Help: "Tickets produced by source",
	}, []string{"source"})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eticket_extraction_duration_seconds",
		Help:    "Time taken to extract tickets from one input",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"source"})

	WalletTickets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eticket_wallet_tickets",
		Help: "Tickets currently saved in the wallet",
	})

	FeedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eticket_feed_messages_total",
		Help: "QR feed messages by outcome",
	}, []string{"outcome"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
