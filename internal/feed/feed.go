// Package feed connects the wallet to NATS: scanner devices publish decoded QR
// strings, and every saved ticket is announced on an outbound subject.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"eticket_parser/internal/metrics"
	"eticket_parser/internal/payload"
	"eticket_parser/internal/ticket"
)

// Default subjects.
const (
	DefaultScanSubject  = "tickets.scans"
	DefaultAddedSubject = "tickets.added"
)

// Feed outcomes.
const (
	OutcomeSaved        = "saved"
	OutcomeEmpty        = "empty"
	OutcomeNoPassengers = "no_passengers"
	OutcomeFailed       = "failed"
)

// Config holds NATS feed settings.
type Config struct {
	URL          string `yaml:"url" env:"NATS_URL"`
	ScanSubject  string `yaml:"scan_subject" env:"NATS_SCAN_SUBJECT" env-default:"tickets.scans"`
	Queue        string `yaml:"queue" env:"NATS_QUEUE" env-default:"eticket"`
	AddedSubject string `yaml:"added_subject" env:"NATS_ADDED_SUBJECT" env-default:"tickets.added"`
}

// Extractor turns a payload into tickets.
type Extractor interface {
	FromPayload(ctx context.Context, p *payload.Payload) ([]*ticket.Ticket, error)
}

// Saver stores extracted tickets.
type Saver interface {
	Add(ctx context.Context, tickets ...*ticket.Ticket) error
}

// Conn is a NATS connection that can shut down without dropping in-flight messages.
type Conn struct {
	*nats.Conn
	closed chan struct{}
}

// Connect dials NATS and keeps reconnecting for as long as the process runs.
func Connect(url, name string, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	closed := make(chan struct{})
	var once sync.Once
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			once.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Conn{Conn: nc, closed: closed}, nil
}

// Shutdown drains every subscription, flushes pending publishes and waits
// until the connection has closed or timeout has passed.
func (c *Conn) Shutdown(timeout time.Duration) error {
	if err := c.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("drain nats: %w", err)
	}
	return waitClosed(c.closed, timeout)
}

func waitClosed(closed <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-closed:
		return nil
	case <-timer.C:
		return fmt.Errorf("nats drain did not finish within %s", timeout)
	}
}

// Handler processes one scan message.
type Handler struct {
	extractor Extractor
	saver     Saver
	logger    *slog.Logger
}

// NewHandler creates a Handler. A nil logger falls back to slog.Default().
func NewHandler(extractor Extractor, saver Saver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{extractor: extractor, saver: saver, logger: logger}
}

// Handle decodes a scan message, extracts its tickets and saves them.
// It returns the outcome label; the error is non-nil only for OutcomeFailed.
func (h *Handler) Handle(ctx context.Context, source string, data []byte) (string, error) {
	p, form := payload.Decode(data)
	if p == nil {
		metrics.FeedMessages.WithLabelValues(OutcomeEmpty).Inc()
		return OutcomeEmpty, nil
	}
	if p.Source == "" {
		p.Source = source
	}
	// Scanners publish QR strings; a flat payload without a kind is one too.
	if p.Kind == "" {
		p.Kind = payload.KindQR
	}

	tickets, err := h.extractor.FromPayload(ctx, p)
	if err != nil {
		metrics.FeedMessages.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("extract %s payload: %w", form, err)
	}
	if len(tickets) == 0 {
		metrics.FeedMessages.WithLabelValues(OutcomeNoPassengers).Inc()
		h.logger.Info("scan has no passengers", "source", p.Source, "form", form)
		return OutcomeNoPassengers, nil
	}

	if err := h.saver.Add(ctx, tickets...); err != nil {
		metrics.FeedMessages.WithLabelValues(OutcomeFailed).Inc()
		return OutcomeFailed, fmt.Errorf("save tickets: %w", err)
	}

	metrics.FeedMessages.WithLabelValues(OutcomeSaved).Inc()
	return OutcomeSaved, nil
}

// MsgHandler adapts h to a NATS callback. Messages are handled under a
// context detached from ctx's cancellation, so scans still being drained at
// shutdown are saved.
func (h *Handler) MsgHandler(ctx context.Context) nats.MsgHandler {
	msgCtx := context.WithoutCancel(ctx)
	return func(m *nats.Msg) {
		outcome, err := h.Handle(msgCtx, m.Subject, m.Data)
		if err != nil {
			h.logger.Warn("scan rejected", "subject", m.Subject, "outcome", outcome, "error", err)
			return
		}
		h.logger.Debug("scan processed", "subject", m.Subject, "outcome", outcome)
	}
}

// Subscribe starts consuming subject. With a non-empty queue, several
// subscribers share the load. Conn.Shutdown drains the subscription.
func Subscribe(ctx context.Context, nc *nats.Conn, subject, queue string, h *Handler) (*nats.Subscription, error) {
	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = nc.QueueSubscribe(subject, queue, h.MsgHandler(ctx))
	} else {
		sub, err = nc.Subscribe(subject, h.MsgHandler(ctx))
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	h.logger.Info("subscribed to scans", "subject", subject, "queue", queue)
	return sub, nil
}

// Publisher announces saved tickets, one JSON message per ticket.
// It implements wallet.Publisher.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a Publisher on subject.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultAddedSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// Publish sends each ticket in order.
func (p *Publisher) Publish(_ context.Context, tickets []*ticket.Ticket) error {
	for _, t := range tickets {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal ticket: %w", err)
		}
		if err := p.nc.Publish(p.subject, b); err != nil {
			return fmt.Errorf("publish %s: %w", p.subject, err)
		}
	}
	return nil
}
