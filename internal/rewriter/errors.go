package rewriter

import (
	"errors"
	"fmt"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
)

var (
	// ErrInvalidRange is returned for spans with start >= end or offsets
	// outside the source text.
	ErrInvalidRange = errors.New("span range is invalid")
	// ErrTextMismatch is returned when a span's text differs from the source
	// text at its offsets.
	ErrTextMismatch = errors.New("span text does not match source")
	// ErrOverlap is returned when two spans cover a common code point.
	ErrOverlap = errors.New("spans overlap")
)

// SpanError reports the span that broke the input contract. Index is the
// span's position in the caller's slice.
type SpanError struct {
	Index int
	Span  entity.Span
	Err   error
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("span %d [%d,%d) %s: %v", e.Index, e.Span.Start, e.Span.End, e.Span.Type, e.Err)
}

func (e *SpanError) Unwrap() error {
	return e.Err
}
