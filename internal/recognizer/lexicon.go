package recognizer

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
)

type lexEntry struct {
	length int
	folded string
	typ    entity.EntityType
}

// Lexicon recognizes whole-word occurrences of known names, ignoring case.
// Longer entries win over shorter ones starting at the same offset and
// matches never overlap. Add must not run concurrently with Recognize.
type Lexicon struct {
	entries []lexEntry
	seen    map[string]bool
}

// NewLexicon creates an empty lexicon
func NewLexicon() *Lexicon {
	return &Lexicon{seen: make(map[string]bool)}
}

// Add registers names of type t. Blank and duplicate names are ignored.
func (l *Lexicon) Add(t entity.EntityType, names ...string) {
	folder := cases.Fold()
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		folded := folder.String(name)
		if l.seen[folded] {
			continue
		}
		l.seen[folded] = true
		l.entries = append(l.entries, lexEntry{
			length: utf8.RuneCountInString(name),
			folded: folded,
			typ:    t,
		})
	}

	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].length > l.entries[j].length
	})
}

// Len returns the number of entries
func (l *Lexicon) Len() int { return len(l.entries) }

// Name returns the recognizer name
func (l *Lexicon) Name() string { return "lexicon" }

// Recognize scans text left to right and returns spans in offset order.
// Text matched by the email or phone patterns is skipped; the pattern scanner
// masks those values whole.
func (l *Lexicon) Recognize(ctx context.Context, text string) ([]entity.Span, error) {
	source := []rune(text)
	spans := make([]entity.Span, 0)
	folder := cases.Fold()
	protected := patternCoverage(text, len(source))

	for pos := 0; pos < len(source); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if protected[pos] || (pos > 0 && isWordRune(source[pos-1])) {
			pos++
			continue
		}

		matched := false
		for _, e := range l.entries {
			end := pos + e.length
			if end > len(source) || (end < len(source) && isWordRune(source[end])) {
				continue
			}
			if covers(protected, pos, end) {
				continue
			}
			if folder.String(string(source[pos:end])) != e.folded {
				continue
			}
			spans = append(spans, entity.Span{
				Start: pos,
				End:   end,
				Type:  e.typ,
				Text:  string(source[pos:end]),
			})
			pos = end
			matched = true
			break
		}
		if !matched {
			pos++
		}
	}

	return spans, nil
}

// patternCoverage marks the code points of text inside a match of any
// built-in pattern rule
func patternCoverage(text string, runeCount int) []bool {
	protected := make([]bool, runeCount)
	for _, rule := range privacy.GetDefaultRules() {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			start := utf8.RuneCountInString(text[:loc[0]])
			end := start + utf8.RuneCountInString(text[loc[0]:loc[1]])
			for i := start; i < end; i++ {
				protected[i] = true
			}
		}
	}
	return protected
}

func covers(protected []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if protected[i] {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
