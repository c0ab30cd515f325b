package synth

import (
	"encoding/json"
	"fmt"
)

// Kind is a placeholder kind and the label recorded for its spans.
type Kind string

const (
	KindPerson Kind = "PERSON"
	KindOrg    Kind = "ORG"
	KindLoc    Kind = "LOC"
)

// Kinds lists the kinds in substitution order.
func Kinds() []Kind {
	return []Kind{KindPerson, KindOrg, KindLoc}
}

// Token returns the placeholder token for k, e.g. "{PERSON}".
func (k Kind) Token() string {
	return "{" + string(k) + "}"
}

// Pools holds the directory values drawn for each kind.
type Pools struct {
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations"`
	Locations     []string `json:"locations"`
}

// For returns the pool used for k.
func (p Pools) For(k Kind) []string {
	switch k {
	case KindPerson:
		return p.Persons
	case KindOrg:
		return p.Organizations
	case KindLoc:
		return p.Locations
	}
	return nil
}

// Add appends values to the pool for k.
func (p *Pools) Add(k Kind, values ...string) {
	switch k {
	case KindPerson:
		p.Persons = append(p.Persons, values...)
	case KindOrg:
		p.Organizations = append(p.Organizations, values...)
	case KindLoc:
		p.Locations = append(p.Locations, values...)
	}
}

// Annotation is a labeled code-point span. It encodes as [start, end, label],
// the shape the trainer consumes.
type Annotation struct {
	Start int
	End   int
	Label Kind
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{a.Start, a.End, a.Label})
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("annotation must have 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &a.Start); err != nil {
		return fmt.Errorf("annotation start: %w", err)
	}
	if err := json.Unmarshal(raw[1], &a.End); err != nil {
		return fmt.Errorf("annotation end: %w", err)
	}
	if err := json.Unmarshal(raw[2], &a.Label); err != nil {
		return fmt.Errorf("annotation label: %w", err)
	}
	return nil
}

// Example is one annotated training sentence.
type Example struct {
	Text     string       `json:"text"`
	Entities []Annotation `json:"entities"`
}

// Stats counts the outcome of a Generate call.
type Stats struct {
	Requested int `json:"requested"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
}
