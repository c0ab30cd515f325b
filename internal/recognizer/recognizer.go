// Package recognizer is the boundary to entity detectors. Detection itself is
// external; implementations here only turn detector output into spans.
package recognizer

import (
	"context"
	"fmt"

	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/etl"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
)

// Recognizer finds entity spans in a text
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]entity.Span, error)
	Name() string
}

// Static returns the same spans for every text. It carries detector output
// produced elsewhere.
type Static struct {
	Spans []entity.Span
}

// Recognize returns a copy of the configured spans
func (s Static) Recognize(ctx context.Context, text string) ([]entity.Span, error) {
	out := make([]entity.Span, len(s.Spans))
	copy(out, s.Spans)
	return out, nil
}

// Name returns the recognizer name
func (s Static) Name() string { return "static" }

// FromConfig builds the recognizer selected by cfg.Type
func FromConfig(cfg config.RecognizerConfig, log *logger.Logger) (Recognizer, error) {
	switch cfg.Type {
	case "", "none":
		return Static{}, nil
	case "http":
		return NewHTTP(cfg.Endpoint, cfg.Timeout, log), nil
	case "lexicon":
		pools, err := etl.LoadPools(etl.Sources{
			Persons:       cfg.Directories.Persons,
			Organizations: cfg.Directories.Organizations,
			Locations:     cfg.Directories.Locations,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load lexicon directories: %w", err)
		}
		lex := NewLexicon()
		lex.Add(entity.Person, pools.Persons...)
		lex.Add(entity.Organization, pools.Organizations...)
		lex.Add(entity.Location, pools.Locations...)
		log.Info("Lexicon recognizer loaded")
		return lex, nil
	default:
		return nil, fmt.Errorf("unknown recognizer type: %s", cfg.Type)
	}
}
