// Package registry assigns stable pseudonyms to original values.
//
// A Registry lives for one document or session. It only grows: once a
// (type, value) pair has a pseudonym it keeps it, and per-type counters never
// go back, so consistent-mode pseudonyms are never reused.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
)

// Mode selects how new pseudonyms are generated.
type Mode int

const (
	// ModeConsistent generates numbered pseudonyms, distinct per original.
	ModeConsistent Mode = iota
	// ModePlaceholder replaces every value of a type with "[TYPE]". Distinct
	// originals collapse to the same placeholder.
	ModePlaceholder
)

func (m Mode) String() string {
	if m == ModePlaceholder {
		return "placeholder"
	}
	return "consistent"
}

// Options control the fallback used for types without a pseudonym template.
type Options struct {
	ReplacementChar string
	PreserveLength  bool
	FallbackLength  int
}

// DefaultOptions mirrors the default pseudonymization config.
func DefaultOptions() Options {
	return Options{
		ReplacementChar: "X",
		PreserveLength:  true,
		FallbackLength:  3,
	}
}

// Registry maps (type, case-folded original) keys to pseudonyms.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	entries  map[string]string
	counters map[entity.EntityType]int

	// issued holds every pseudonym handed out, for reverse lookups
	issued map[string]bool
	folder cases.Caser
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.ReplacementChar == "" {
		opts.ReplacementChar = "X"
	}
	if opts.FallbackLength <= 0 {
		opts.FallbackLength = 3
	}
	return &Registry{
		opts:     opts,
		entries:  make(map[string]string),
		counters: make(map[entity.EntityType]int),
		issued:   make(map[string]bool),
		folder:   cases.Fold(),
	}
}

// Resolve returns the pseudonym for original, generating and storing one if
// this (type, value) pair has not been seen yet.
func (r *Registry) Resolve(original string, t entity.EntityType, mode Mode) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.key(original, t)
	if replacement, ok := r.entries[key]; ok {
		return replacement
	}

	var replacement string
	if mode == ModePlaceholder {
		replacement = "[" + string(t) + "]"
	} else {
		replacement = r.generate(original, t)
	}

	r.entries[key] = replacement
	r.issued[replacement] = true
	return replacement
}

// IsPseudonym reports whether s was handed out by this registry. Text that
// was already rewritten can be rescanned without replacing its pseudonyms.
func (r *Registry) IsPseudonym(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issued[s]
}

// Lookup returns the stored pseudonym without generating one.
func (r *Registry) Lookup(original string, t entity.EntityType) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replacement, ok := r.entries[r.key(original, t)]
	return replacement, ok
}

// key must be called with r.mu held; the caser is stateful.
func (r *Registry) key(original string, t entity.EntityType) string {
	return string(t) + "_" + r.folder.String(original)
}

func (r *Registry) next(t entity.EntityType) int {
	r.counters[t]++
	return r.counters[t]
}

func (r *Registry) generate(original string, t entity.EntityType) string {
	switch t {
	case entity.Person, entity.Organization, entity.Location, entity.Date:
		return fmt.Sprintf("%s_%d", t, r.next(t))
	case entity.Email:
		return fmt.Sprintf("email%d@example.com", r.next(t))
	case entity.Phone:
		return fmt.Sprintf("0%d.XX.XX.XX.XX", r.next(t))
	default:
		n := r.opts.FallbackLength
		if r.opts.PreserveLength {
			n = entity.RuneLen(original)
		}
		return strings.Repeat(r.opts.ReplacementChar, n)
	}
}

// Len returns the number of stored correspondences.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Correspondences returns a copy of the key → pseudonym map.
func (r *Registry) Correspondences() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

// Counters returns a copy of the per-type counters.
func (r *Registry) Counters() map[entity.EntityType]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[entity.EntityType]int, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}
