// Package patterns provides the shared normaliser and the ranked, grok-style field extractor
// used by both ticket pipelines.
// This file contains the pattern compiler and the first-match evaluator.

package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Format is one candidate pattern for a field.
// The first capture group carries the field value; further named groups are optional extras.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Capture names in order (for documentation)
}

// Field is a logical ticket field with its candidate formats, most specific first.
type Field struct {
	Name    string
	Formats []Format
}

// Compiler manages pattern compilation and extraction for a table of fields.
type Compiler struct {
	basePatterns map[string]string
	fields       []Field
	index        map[string]int
}

// NewCompiler creates a new pattern compiler for the given field table.
// It merges the provided local patterns over the global BasePatterns.
func NewCompiler(fields []Field, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string, len(BasePatterns)+len(localPatterns)),
		fields:       make([]Field, len(fields)),
		index:        make(map[string]int, len(fields)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	// Copy fields and their formats so Compile never writes into the caller's table.
	for i, f := range fields {
		formats := make([]Format, len(f.Formats))
		copy(formats, f.Formats)
		c.fields[i] = Field{Name: f.Name, Formats: formats}
		c.index[f.Name] = i
	}

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles every format case-insensitively.
func (c *Compiler) Compile() error {
	for i := range c.fields {
		for j := range c.fields[i].Formats {
			f := &c.fields[i].Formats[j]
			re, err := regexp.Compile("(?i)" + c.expand(f.Pattern))
			if err != nil {
				return fmt.Errorf("field %s format %s: %w", c.fields[i].Name, f.Name, err)
			}
			f.Compiled = re
		}
	}
	return nil
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		result = strings.ReplaceAll(result, "{"+name+"}", regex)
	}
	return result
}

// FieldNames returns the field names in table order.
func (c *Compiler) FieldNames() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.Name
	}
	return names
}

// Formats returns the compiled formats of a field, or nil for an unknown field.
func (c *Compiler) Formats(field string) []Format {
	i, ok := c.index[field]
	if !ok {
		return nil
	}
	return c.fields[i].Formats
}

// Capture is the outcome of extracting one field. The zero value means "absent",
// which is distinct from a match.
type Capture struct {
	Value  string // Trimmed value of the first capture group
	Format string // Name of the format that matched
	found  bool
}

// Found reports whether any format matched.
func (c Capture) Found() bool { return c.found }

// Or returns the captured value, or def when the field is absent.
func (c Capture) Or(def string) string {
	if !c.found {
		return def
	}
	return c.Value
}

// Match represents a successful format match with all of its groups.
type Match struct {
	Field      string            // Field the format belongs to
	FormatName string            // Name of the matched format
	Value      string            // Trimmed first capture group
	Captures   map[string]string // Trimmed named capture groups
}

// Capture converts the match to a Capture. A nil match is absent.
func (m *Match) Capture() Capture {
	if m == nil {
		return Capture{}
	}
	return Capture{Value: m.Value, Format: m.FormatName, found: true}
}

// GetCapture is a helper to safely get a named capture with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// matchFormat evaluates a single format. A format only counts as matched when
// its first capture group is non-empty after trimming.
func matchFormat(f *Format, text string) *Match {
	if f.Compiled == nil || f.Compiled.NumSubexp() < 1 {
		return nil
	}
	m := f.Compiled.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value := strings.TrimSpace(m[1])
	if value == "" {
		return nil
	}

	result := &Match{
		FormatName: f.Name,
		Value:      value,
		Captures:   make(map[string]string),
	}
	for i, name := range f.Compiled.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		result.Captures[name] = strings.TrimSpace(m[i])
	}
	return result
}

// FirstMatch evaluates formats in order and returns the first match, or nil.
// The order of formats is the tie-break.
func FirstMatch(text string, formats []Format) *Match {
	for i := range formats {
		if m := matchFormat(&formats[i], text); m != nil {
			return m
		}
	}
	return nil
}

// Match returns the first matching format of a field, or nil when none match
// or the field is unknown.
func (c *Compiler) Match(text, field string) *Match {
	m := FirstMatch(text, c.Formats(field))
	if m != nil {
		m.Field = field
	}
	return m
}

// Extract returns the first-match capture of a field.
func (c *Compiler) Extract(text, field string) Capture {
	return c.Match(text, field).Capture()
}

// ExtractAll extracts every field of the table independently.
func (c *Compiler) ExtractAll(text string) map[string]Capture {
	out := make(map[string]Capture, len(c.fields))
	for _, f := range c.fields {
		out[f.Name] = FirstMatch(text, f.Formats).Capture()
	}
	return out
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            // Format name
	Matched  bool              // Whether the pattern matched with a non-empty value
	Pattern  string            // The expanded regex pattern
	Value    string            // First capture group (if matched)
	Captures map[string]string // Named groups (if matched)
}

// FieldTrace contains complete trace information for one field.
type FieldTrace struct {
	Field   string
	Formats []FormatTrace // All format attempts, in order
	Match   *Match        // The first successful match (if any)
}

// ExtractWithTrace tries every format of a field and records each outcome.
// This is useful for debugging why a ticket layout doesn't extract.
func (c *Compiler) ExtractWithTrace(text, field string) *FieldTrace {
	formats := c.Formats(field)
	trace := &FieldTrace{
		Field:   field,
		Formats: make([]FormatTrace, 0, len(formats)),
	}

	for i := range formats {
		ft := FormatTrace{
			Name:    formats[i].Name,
			Pattern: c.expand(formats[i].Pattern),
		}
		if m := matchFormat(&formats[i], text); m != nil {
			ft.Matched = true
			ft.Value = m.Value
			ft.Captures = m.Captures
			if trace.Match == nil {
				m.Field = field
				trace.Match = m
			}
		}
		trace.Formats = append(trace.Formats, ft)
	}

	return trace
}
