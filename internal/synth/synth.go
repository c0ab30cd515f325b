// Package synth builds annotated training sentences from templates and name
// directories.
//
// Placeholders are substituted kind by kind ({PERSON}, then {ORG}, then
// {LOC}), always at the first remaining occurrence in the partially filled
// string, and each span is recorded against the string as it is at that
// moment. Spans recorded for an earlier kind are not shifted by later kinds,
// so a template where {ORG} or {LOC} appears before a {PERSON} yields stale
// PERSON offsets. This is the known behavior of the generator and is kept as
// is; Example.Check reports such examples.
package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrNoTemplates is returned when there is nothing to draw from.
var ErrNoTemplates = errors.New("no templates loaded")

// Generate draws count templates uniformly with replacement and fills them
// from pools. Draws that keep an unresolved placeholder, or that contain no
// placeholder at all, are dropped without retry, so fewer than count examples
// may come back. A negative count is treated as zero.
func Generate(templates []string, pools Pools, count int, rng *rand.Rand) ([]Example, Stats, error) {
	if count < 0 {
		count = 0
	}
	stats := Stats{Requested: count}
	if len(templates) == 0 {
		return nil, stats, ErrNoTemplates
	}

	examples := make([]Example, 0, count)
	for i := 0; i < count; i++ {
		template := templates[rng.IntN(len(templates))]

		ex, ok := fill(template, pools, rng)
		if !ok {
			stats.Rejected++
			continue
		}
		examples = append(examples, ex)
	}
	stats.Accepted = len(examples)

	return examples, stats, nil
}

// fill substitutes every placeholder of template. It reports false when the
// result fails validation.
func fill(template string, pools Pools, rng *rand.Rand) (Example, bool) {
	current := template
	var spans []Annotation

	for _, kind := range Kinds() {
		pool := pools.For(kind)
		token := kind.Token()

		// Bounded by the tokens present when the pass starts, so a value
		// that itself contains the token cannot loop forever.
		remaining := strings.Count(current, token)
		for ; len(pool) > 0 && remaining > 0; remaining-- {
			idx := strings.Index(current, token)
			if idx < 0 {
				break
			}
			value := pool[rng.IntN(len(pool))]

			start := utf8.RuneCountInString(current[:idx])
			spans = append(spans, Annotation{
				Start: start,
				End:   start + utf8.RuneCountInString(value),
				Label: kind,
			})
			current = current[:idx] + value + current[idx+len(token):]
		}
	}

	if hasPlaceholder(current) || len(spans) == 0 {
		return Example{}, false
	}

	sort.SliceStable(spans, func(a, b int) bool {
		return spans[a].Start < spans[b].Start
	})
	return Example{Text: current, Entities: spans}, true
}

func hasPlaceholder(text string) bool {
	for _, kind := range Kinds() {
		if strings.Contains(text, kind.Token()) {
			return true
		}
	}
	return false
}

// Check verifies that the spans of ex are inside the text, sorted and
// non-overlapping.
func (ex Example) Check() error {
	n := utf8.RuneCountInString(ex.Text)
	for i, a := range ex.Entities {
		if a.Start < 0 || a.End > n || a.Start >= a.End {
			return fmt.Errorf("entity %d [%d,%d) outside text of length %d", i, a.Start, a.End, n)
		}
		if i > 0 && a.Start < ex.Entities[i-1].End {
			return fmt.Errorf("entity %d [%d,%d) overlaps previous [%d,%d)", i, a.Start, a.End,
				ex.Entities[i-1].Start, ex.Entities[i-1].End)
		}
	}
	return nil
}

// Covered returns the text under each annotation.
func (ex Example) Covered() []string {
	runes := []rune(ex.Text)
	out := make([]string, 0, len(ex.Entities))
	for _, a := range ex.Entities {
		if a.Start < 0 || a.End > len(runes) || a.Start > a.End {
			out = append(out, "")
			continue
		}
		out = append(out, string(runes[a.Start:a.End]))
	}
	return out
}

// NewRand returns a deterministic source for seeded runs.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
