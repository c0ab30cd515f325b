// Package rewriter replaces entity spans in a text with registry pseudonyms.
//
// Spans are given in the coordinates of the original text. They are applied
// left to right while a running offset tracks how much earlier replacements
// have grown or shrunk the text, so later spans can still be located. That
// only works when spans do not overlap, so overlapping input is rejected
// before anything is replaced.
package rewriter

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// AppliedEntity records one replacement, positioned in the original text.
type AppliedEntity struct {
	Original    string            `json:"original"`
	Replacement string            `json:"replacement"`
	Type        entity.EntityType `json:"type"`
	Start       int               `json:"-"`
	End         int               `json:"-"`
}

// Position formats the original range as "start-end".
func (a AppliedEntity) Position() string {
	return fmt.Sprintf("%d-%d", a.Start, a.End)
}

type appliedJSON struct {
	Original    string            `json:"original"`
	Replacement string            `json:"replacement"`
	Type        entity.EntityType `json:"type"`
	Position    string            `json:"position"`
}

// MarshalJSON encodes the entity with its "start-end" position string.
func (a AppliedEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(appliedJSON{
		Original:    a.Original,
		Replacement: a.Replacement,
		Type:        a.Type,
		Position:    a.Position(),
	})
}

// UnmarshalJSON decodes the position string back into Start and End.
func (a *AppliedEntity) UnmarshalJSON(data []byte) error {
	var raw appliedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var start, end int
	if _, err := fmt.Sscanf(raw.Position, "%d-%d", &start, &end); err != nil {
		return fmt.Errorf("invalid position %q: %w", raw.Position, err)
	}
	*a = AppliedEntity{
		Original:    raw.Original,
		Replacement: raw.Replacement,
		Type:        raw.Type,
		Start:       start,
		End:         end,
	}
	return nil
}

// Result is the rewritten text and the replacements applied, in original
// left-to-right order.
type Result struct {
	Text    string
	Applied []AppliedEntity
}

// Rewrite validates spans against source, then replaces every span whose type
// the policy enables. On error no text is returned.
func Rewrite(source string, spans []entity.Span, reg *registry.Registry, policy registry.Policy) (*Result, error) {
	text := []rune(source)

	ordered, err := order(text, spans)
	if err != nil {
		return nil, err
	}

	applied := make([]AppliedEntity, 0, len(ordered))
	offset := 0

	for _, span := range ordered {
		if !policy.Enabled(span.Type) {
			continue
		}

		start := span.Start + offset
		end := span.End + offset

		replacement := reg.Resolve(span.Text, span.Type, policy.Mode)
		repl := []rune(replacement)

		text = splice(text, start, end, repl)
		offset += len(repl) - span.Len()

		applied = append(applied, AppliedEntity{
			Original:    span.Text,
			Replacement: replacement,
			Type:        span.Type,
			Start:       span.Start,
			End:         span.End,
		})
	}

	return &Result{Text: string(text), Applied: applied}, nil
}

// order checks every span against the source and returns a copy sorted by
// start. Ties keep the caller's order.
func order(source []rune, spans []entity.Span) ([]entity.Span, error) {
	type indexed struct {
		span  entity.Span
		index int
	}

	items := make([]indexed, len(spans))
	for i, span := range spans {
		covered, ok := entity.Slice(source, span.Start, span.End)
		if !ok {
			return nil, &SpanError{Index: i, Span: span, Err: ErrInvalidRange}
		}
		if span.Text == "" {
			span.Text = covered
		} else if span.Text != covered {
			return nil, &SpanError{Index: i, Span: span, Err: ErrTextMismatch}
		}
		items[i] = indexed{span: span, index: i}
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].span.Start < items[b].span.Start
	})

	out := make([]entity.Span, len(items))
	for i, item := range items {
		if i > 0 && item.span.Start < items[i-1].span.End {
			return nil, &SpanError{Index: item.index, Span: item.span, Err: ErrOverlap}
		}
		out[i] = item.span
	}
	return out, nil
}

func splice(text []rune, start, end int, replacement []rune) []rune {
	out := make([]rune, 0, len(text)-(end-start)+len(replacement))
	out = append(out, text[:start]...)
	out = append(out, replacement...)
	return append(out, text[end:]...)
}
