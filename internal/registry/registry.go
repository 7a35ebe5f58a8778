// Package registry provides a parser registry for dispatching raw ticket
// payloads to the appropriate parsers.
package registry

import (
	"sort"
	"sync"

	"eticket_parser/internal/payload"
	"eticket_parser/internal/ticket"
)

// Result is the common interface for all parse results.
type Result interface {
	Type() string              // e.g., "pdf_ticket", "qr_ticket"
	PayloadID() string         // The original payload ID
	Tickets() []*ticket.Ticket // Tickets produced, in source order
}

// Parser is implemented by each ticket parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Kinds returns which payload kinds this parser handles.
	// Empty slice means "all kinds".
	Kinds() []string

	// QuickCheck performs a fast string check before expensive regex.
	// Returns true if the payload MIGHT be parseable (false = definitely skip).
	// This should use strings.Contains and friends, NOT regex.
	QuickCheck(text string) bool

	// Priority determines order when multiple parsers handle the same kind.
	// Lower number = checked first.
	Priority() int

	// Parse attempts to parse the payload, returns nil if not applicable.
	Parse(p *payload.Payload) Result
}

// Registry holds all registered parsers organised for efficient dispatch.
type Registry struct {
	mu sync.RWMutex

	// byKind maps payload kinds to parser slices, sorted by Priority (ascending)
	byKind map[string][]Parser

	// global holds parsers that accept every kind
	global []Parser

	// sorted tracks whether parsers have been sorted
	sorted bool
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byKind: make(map[string][]Parser),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := p.Kinds()
	if len(kinds) == 0 {
		r.global = append(r.global, p)
	} else {
		for _, kind := range kinds {
			r.byKind[kind] = append(r.byKind[kind], p)
		}
	}
	r.sorted = false
}

// Sort sorts all parser slices by priority. Call before dispatching.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sorted {
		return
	}

	for kind := range r.byKind {
		parsers := r.byKind[kind]
		sort.SliceStable(parsers, func(i, j int) bool {
			return parsers[i].Priority() < parsers[j].Priority()
		})
	}

	sort.SliceStable(r.global, func(i, j int) bool {
		return r.global[i].Priority() < r.global[j].Priority()
	})

	r.sorted = true
}

// candidates returns the parsers to try for a payload kind.
// An empty kind tries every registered parser in priority order.
// Callers must hold r.mu.
func (r *Registry) candidates(kind string) []Parser {
	if kind != "" {
		out := make([]Parser, 0, len(r.byKind[kind])+len(r.global))
		out = append(out, r.byKind[kind]...)
		return append(out, r.global...)
	}

	all := r.allParsers()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Priority() < all[j].Priority()
	})
	return all
}

// Dispatch routes a payload to appropriate parsers and returns all results.
// Note: Sort() should be called before Dispatch() for a stable priority order.
func (r *Registry) Dispatch(p *payload.Payload) []Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []Result
	for _, parser := range r.candidates(p.Kind) {
		if !parser.QuickCheck(p.Text) {
			continue
		}
		if result := parser.Parse(p); result != nil {
			results = append(results, result)
		}
	}
	return results
}

// DispatchFirst returns only the first successful parse result.
func (r *Registry) DispatchFirst(p *payload.Payload) Result {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, parser := range r.candidates(p.Kind) {
		if !parser.QuickCheck(p.Text) {
			continue
		}
		if result := parser.Parse(p); result != nil {
			return result
		}
	}
	return nil
}

// Lookup returns the parser registered under name, if any.
func (r *Registry) Lookup(name string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.allParsers() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// RegisteredKinds returns all kinds that have parsers registered.
func (r *Registry) RegisteredKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// AllParsers returns all registered parsers, each once.
func (r *Registry) AllParsers() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allParsers()
}

func (r *Registry) allParsers() []Parser {
	// Parsers registered for several kinds appear once.
	seen := make(map[string]bool)
	var result []Parser

	for _, p := range r.global {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			result = append(result, p)
		}
	}

	kinds := make([]string, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		for _, p := range r.byKind[kind] {
			if !seen[p.Name()] {
				seen[p.Name()] = true
				result = append(result, p)
			}
		}
	}

	return result
}
