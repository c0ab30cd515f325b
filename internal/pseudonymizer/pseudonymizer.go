// Package pseudonymizer runs a document through recognition, span rewriting
// and pattern scanning, and builds the correspondence artifacts.
package pseudonymizer

import (
	"context"
	"fmt"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
	"github.com/raaihank/text-pseudonymizer/internal/recognizer"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
	"github.com/raaihank/text-pseudonymizer/internal/rewriter"
)

// Report is the result of pseudonymizing one document
type Report struct {
	OriginalText      string                   `json:"original_text"`
	PseudonymizedText string                   `json:"pseudonymized_text"`
	Entities          []rewriter.AppliedEntity `json:"entities"`
	Correspondences   map[string]string        `json:"correspondences"`
	Findings          []privacy.Finding        `json:"findings,omitempty"`
}

// PatternMatches returns the number of scanner replacements
func (r *Report) PatternMatches() int {
	n := 0
	for _, f := range r.Findings {
		n += f.Count
	}
	return n
}

// Pseudonymizer ties a recognizer and a pattern scanner together
type Pseudonymizer struct {
	recognizer recognizer.Recognizer
	scanner    *privacy.Scanner
	logger     *logger.Logger
}

// New creates a pseudonymizer. A nil recognizer finds no spans.
func New(rec recognizer.Recognizer, scanner *privacy.Scanner, log *logger.Logger) *Pseudonymizer {
	if rec == nil {
		rec = recognizer.Static{}
	}
	return &Pseudonymizer{
		recognizer: rec,
		scanner:    scanner,
		logger:     log.WithComponent("pseudonymizer"),
	}
}

// Recognizer returns the configured recognizer
func (p *Pseudonymizer) Recognizer() recognizer.Recognizer {
	return p.recognizer
}

// Process recognizes entities in text and pseudonymizes them
func (p *Pseudonymizer) Process(ctx context.Context, text string, reg *registry.Registry, policy registry.Policy) (*Report, error) {
	spans, err := p.recognizer.Recognize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity recognition failed: %w", err)
	}
	return p.ProcessSpans(text, spans, reg, policy)
}

// ProcessSpans rewrites the given spans, then runs the pattern scanner over
// the rewritten text. Span errors are returned unwrapped so callers can
// inspect them with errors.As.
func (p *Pseudonymizer) ProcessSpans(text string, spans []entity.Span, reg *registry.Registry, policy registry.Policy) (*Report, error) {
	result, err := rewriter.Rewrite(text, spans, reg, policy)
	if err != nil {
		return nil, err
	}

	out := result.Text
	var findings []privacy.Finding
	if p.scanner != nil {
		scanned := p.scanner.Process(out, reg, policy)
		out = scanned.MaskedText
		findings = scanned.Findings
	}

	report := &Report{
		OriginalText:      text,
		PseudonymizedText: out,
		Entities:          result.Applied,
		Correspondences:   reg.Correspondences(),
		Findings:          findings,
	}

	p.logger.LogDocument(entity.RuneLen(text), len(report.Entities), report.PatternMatches(), len(report.Correspondences))

	return report, nil
}
