// Package payload provides the raw text inputs handed to the ticket parsers.
package payload

import (
	"encoding/json"
	"strings"
)

// Payload kinds.
const (
	KindPDF = "pdf" // Text layer of a ticket PDF
	KindQR  = "qr"  // String decoded from a ticket QR code
)

// Payload is one piece of raw extracted text plus where it came from.
// Kind may be empty when the origin is unknown (e.g. text pasted by a user).
type Payload struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind"`
	Source     string `json:"source,omitempty"` // File name, device or subject
	Text       string `json:"text"`
	ReceivedAt string `json:"received_at,omitempty"`
}

// Device describes the scanner that produced a QR payload.
type Device struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Model string `json:"model,omitempty"`
}

// ScanInner is the decoded symbol inside a scanner wrapper.
type ScanInner struct {
	Text      string `json:"text"`
	Format    string `json:"format,omitempty"` // e.g. QR_CODE
	Timestamp string `json:"timestamp,omitempty"`
}

// ScanWrapper is the envelope published by camera scanners, where the decoded
// text is nested inside a "scan" field with device metadata at the top level.
type ScanWrapper struct {
	ID     string     `json:"id,omitempty"`
	Device *Device    `json:"device,omitempty"`
	Scan   *ScanInner `json:"scan,omitempty"`
}

// ToPayload converts a ScanWrapper to a QR Payload.
func (w *ScanWrapper) ToPayload() *Payload {
	if w.Scan == nil {
		return nil
	}

	p := &Payload{
		ID:         w.ID,
		Kind:       KindQR,
		Text:       w.Scan.Text,
		ReceivedAt: w.Scan.Timestamp,
	}
	if w.Device != nil {
		p.Source = w.Device.Name
		if p.Source == "" {
			p.Source = w.Device.ID
		}
	}
	return p
}

// Decode accepts a scanner envelope, a flat Payload, or anything else as raw QR text.
// The second return value names the form that was recognised: "scan", "flat" or "raw".
// Blank input yields nil.
func Decode(b []byte) (*Payload, string) {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var w ScanWrapper
		if err := json.Unmarshal(b, &w); err == nil && w.Scan != nil && strings.TrimSpace(w.Scan.Text) != "" {
			return w.ToPayload(), "scan"
		}

		var p Payload
		if err := json.Unmarshal(b, &p); err == nil && strings.TrimSpace(p.Text) != "" {
			return &p, "flat"
		}
	}

	return &Payload{Kind: KindQR, Text: string(b)}, "raw"
}
