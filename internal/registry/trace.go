// Package registry provides tracing interfaces for parser debugging.
package registry

import "eticket_parser/internal/payload"

// TraceResult contains trace information from a parser's attempt to parse a payload.
type TraceResult struct {
	ParserName string       // Name of the parser.
	QuickCheck *QuickCheck  // QuickCheck result (nil if not applicable).
	Fields     []FieldTrace // Per-field pattern attempts.
	Blocks     int          // Repeated blocks found (multi-passenger parsers).
	Missing    []string     // Required fields that came out empty.
	Matched    bool         // Whether the parser produced at least one ticket.
}

// QuickCheck contains the result of a parser's quick check.
type QuickCheck struct {
	Passed bool   // Whether the quick check passed.
	Reason string // Optional reason for the result.
}

// FieldTrace contains the candidate patterns tried for one field.
type FieldTrace struct {
	Field   string        // Field name (e.g., "pnr", "train_number").
	Value   string        // Value taken from the first matching format.
	Formats []FormatTrace // Attempts, in ranked order.
}

// FormatTrace contains debug information about a format/pattern match attempt.
type FormatTrace struct {
	Name     string            // Format or pattern name.
	Matched  bool              // Whether the pattern matched.
	Pattern  string            // The regex pattern used.
	Value    string            // First capture group (if matched).
	Captures map[string]string // Named groups (if matched).
}

// Traceable is implemented by parsers that support debug tracing.
// This allows the trace command to show detailed information about
// why a parser did or didn't extract a ticket.
type Traceable interface {
	// ParseWithTrace attempts to parse the payload and returns detailed trace information.
	ParseWithTrace(p *payload.Payload) *TraceResult
}
