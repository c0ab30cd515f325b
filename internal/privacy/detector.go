package privacy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// Scanner replaces regex-detected spans with registry pseudonyms. It runs on
// text that has already been through the span rewriter.
type Scanner struct {
	rules   []Rule
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a scanner with the named rules enabled ("all" enables every rule)
func New(detectors []string, log *logger.Logger) (*Scanner, error) {
	scanner := &Scanner{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		logger:  log,
	}

	if err := scanner.configureDetectors(detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Debug("Pattern scanner initialized",
		zap.Int("total_rules", len(scanner.rules)),
		zap.Int("enabled_rules", scanner.countEnabledRules()),
	)

	return scanner, nil
}

// configureDetectors enables/disables rules based on configuration
func (s *Scanner) configureDetectors(detectors []string) error {
	for _, rule := range s.rules {
		s.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range s.rules {
				s.enabled[rule.Name] = true
			}
			continue
		}

		if _, ok := s.rule(detector); !ok {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		s.enabled[detector] = true
	}

	return nil
}

func (s *Scanner) rule(name string) (Rule, bool) {
	for _, rule := range s.rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

// ScanAndReplace substitutes every match of rule in one left-to-right pass.
// Each match is resolved through the registry on its own, so repeated values
// collapse to one pseudonym. Matches that are pseudonyms already issued by reg
// are left as they are.
func (s *Scanner) ScanAndReplace(text string, rule Rule, reg *registry.Registry, mode registry.Mode) (string, Finding) {
	finding := Finding{EntityType: rule.Type, Rule: rule.Name}
	seen := make(map[string]bool)

	masked := rule.Pattern.ReplaceAllStringFunc(text, func(match string) string {
		if reg.IsPseudonym(match) {
			return match
		}
		replacement := reg.Resolve(match, rule.Type, mode)
		finding.Count++
		if !seen[replacement] {
			seen[replacement] = true
			finding.Masked = append(finding.Masked, replacement)
		}
		return replacement
	})

	return masked, finding
}

// Process runs every enabled rule whose type the policy masks, in rule order
func (s *Scanner) Process(text string, reg *registry.Registry, policy registry.Policy) ProcessResult {
	maskedText := text
	findings := make([]Finding, 0)

	for _, rule := range s.rules {
		if !s.enabled[rule.Name] || !policy.Enabled(rule.Type) {
			continue
		}

		var finding Finding
		maskedText, finding = s.ScanAndReplace(maskedText, rule, reg, policy.Mode)
		if finding.Count == 0 {
			continue
		}
		findings = append(findings, finding)

		s.logger.Debug("Pattern matches replaced",
			zap.String("rule", rule.Name),
			zap.String("entity_type", rule.Type.String()),
			zap.Int("count", finding.Count),
		)
	}

	return ProcessResult{
		MaskedText: maskedText,
		Findings:   findings,
	}
}

// Rules returns the built-in rules in application order
func (s *Scanner) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// countEnabledRules returns the number of enabled rules
func (s *Scanner) countEnabledRules() int {
	count := 0
	for _, enabled := range s.enabled {
		if enabled {
			count++
		}
	}
	return count
}

// GetEnabledRules returns the enabled rule names in application order
func (s *Scanner) GetEnabledRules() []string {
	var enabled []string
	for _, rule := range s.rules {
		if s.enabled[rule.Name] {
			enabled = append(enabled, rule.Name)
		}
	}
	return enabled
}

// EnableRule enables a specific rule
func (s *Scanner) EnableRule(ruleName string) error {
	if _, ok := s.rule(ruleName); !ok {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	s.enabled[ruleName] = true
	s.logger.Info("Detection rule enabled", zap.String("rule", ruleName))
	return nil
}

// DisableRule disables a specific rule
func (s *Scanner) DisableRule(ruleName string) error {
	if _, exists := s.enabled[ruleName]; !exists {
		return fmt.Errorf("unknown rule: %s", ruleName)
	}
	s.enabled[ruleName] = false
	s.logger.Info("Detection rule disabled", zap.String("rule", ruleName))
	return nil
}
