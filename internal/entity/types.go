// Package entity defines the entity types and spans shared by every
// pseudonymization component.
//
// Span offsets are Unicode code-point offsets into the text they were
// detected in, not byte offsets.
package entity

import (
	"fmt"
	"unicode/utf8"
)

// EntityType classifies a sensitive span. The six constants below form the
// closed set the rest of the system understands; any other value is a
// pass-through label coming from an external detector.
type EntityType string

const (
	Person       EntityType = "PERSON"
	Organization EntityType = "ORGANIZATION"
	Location     EntityType = "LOCATION"
	Date         EntityType = "DATE"
	Email        EntityType = "EMAIL"
	Phone        EntityType = "PHONE"
)

// labelTable maps detector-native labels onto the closed set.
var labelTable = map[string]EntityType{
	"PERSON":       Person,
	"PER":          Person,
	"ORG":          Organization,
	"ORGANIZATION": Organization,
	"GPE":          Location,
	"LOC":          Location,
	"LOCATION":     Location,
	"DATE":         Date,
	"TIME":         Date,
	"EMAIL":        Email,
	"PHONE":        Phone,
	"TELEPHONE":    Phone,
}

// FromLabel maps a detector label to an EntityType. Unmapped labels pass
// through unchanged as their own type.
func FromLabel(label string) EntityType {
	if t, ok := labelTable[label]; ok {
		return t
	}
	return EntityType(label)
}

// Known reports whether t belongs to the closed set.
func (t EntityType) Known() bool {
	switch t {
	case Person, Organization, Location, Date, Email, Phone:
		return true
	default:
		return false
	}
}

// String returns the label.
func (t EntityType) String() string {
	return string(t)
}

// KnownTypes returns the closed set in a fixed order.
func KnownTypes() []EntityType {
	return []EntityType{Person, Organization, Location, Date, Email, Phone}
}

// Span is a half-open [Start, End) range of code points with its type and the
// text it covers.
type Span struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Type  EntityType `json:"type"`
	Text  string     `json:"text"`
}

// Len returns the number of code points the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether the two half-open ranges intersect.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Position formats the span range as "start-end".
func (s Span) Position() string {
	return fmt.Sprintf("%d-%d", s.Start, s.End)
}

// Slice returns runes[start:end] as a string, or false when the range does not
// fit inside runes.
func Slice(runes []rune, start, end int) (string, bool) {
	if start < 0 || end > len(runes) || start >= end {
		return "", false
	}
	return string(runes[start:end]), true
}

// RuneLen is the code-point length used for every offset computation.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
