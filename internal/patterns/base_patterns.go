// Package patterns provides the shared normaliser and the ranked, grok-style field extractor
// used by both ticket pipelines.
// This file contains grok-style base patterns for use with the Compiler.

package patterns

// BasePatterns defines reusable regex components for grok-style pattern composition.
// These are referenced in format patterns using {PATTERN_NAME} syntax.
// Every format is compiled case-insensitively, so [A-Z] also admits lower case.
var BasePatterns = map[string]string{
	// Label glue.
	"TAIL": `[\w\s]*`,  // Trailing label words, e.g. "Number", "of Journey"
	"SEP":  `[:-]?\s*`, // Optional ':' or '-' after a printed label
	"KV":   ` ?: ?`,    // QR key/value separator

	// Identifiers.
	"PNR":      `[A-Z0-9]{10}`,
	"TRAIN_NO": `\d{5}`,
	"DIGITS":   `\d+`,
	"CODE":     `[A-Z0-9]+`, // Class, coach, seat codes (3A, B1, 50)

	// Date and time.
	"DATE": `\d{2}[-/]\d{2}[-/]\d{2,4}`, // DD-MM-YY[YY] or DD/MM/YY[YY]
	"TIME": `\d{2}:\d{2}`,               // HH:MM

	// Free text. Lazy forms stop at the next label.
	"STATION": `[A-Z\s]+?`,
	"WORDS":   `[\w\s]+?`,
	"NAME":    `[A-Za-z\s]+?`,
	"VALUE":   `[^,]+`,  // Up to the next comma
	"LVALUE":  `[^,]+?`, // Lazy VALUE
	"TOKEN":   `[^ ]+`,
}
