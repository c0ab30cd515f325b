package privacy

import (
	"regexp"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
)

// Rule is a fixed-form matcher for one entity type
type Rule struct {
	Name    string
	Type    entity.EntityType
	Pattern *regexp.Regexp
}

// Finding summarises the matches of one rule. Originals are never kept.
type Finding struct {
	EntityType entity.EntityType `json:"entityType"`
	Rule       string            `json:"rule"`
	Count      int               `json:"count"`
	Masked     []string          `json:"masked"`
}

// ProcessResult contains the result of running the enabled rules over a text
type ProcessResult struct {
	MaskedText string    `json:"maskedText"`
	Findings   []Finding `json:"findings"`
}

// Rule names accepted in the detectors list
const (
	RuleEmail = "email"
	RulePhone = "phone"
)

// GetDefaultRules returns the built-in rules in the order they are applied
func GetDefaultRules() []Rule {
	return []Rule{
		{
			Name:    RuleEmail,
			Type:    entity.Email,
			Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		},
		{
			// French numbers: +33 or a leading 0, then nine digits in pairs
			Name:    RulePhone,
			Type:    entity.Phone,
			Pattern: regexp.MustCompile(`(?:\+33|0)[1-9](?:[.\-\s]?\d{2}){4}`),
		},
	}
}
