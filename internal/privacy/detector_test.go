package privacy

import (
	"testing"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

func newScanner(t *testing.T, detectors ...string) *Scanner {
	t.Helper()
	s, err := New(detectors, logger.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	t.Run("All", func(t *testing.T) {
		s := newScanner(t, "all")
		got := s.GetEnabledRules()
		if len(got) != 2 || got[0] != RuleEmail || got[1] != RulePhone {
			t.Errorf("unexpected enabled rules %v", got)
		}
	})

	t.Run("Specific", func(t *testing.T) {
		s := newScanner(t, RulePhone)
		got := s.GetEnabledRules()
		if len(got) != 1 || got[0] != RulePhone {
			t.Errorf("unexpected enabled rules %v", got)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := New([]string{"ssn"}, logger.NewNop()); err == nil {
			t.Error("expected error for unknown detector")
		}
	})
}

func TestPatterns(t *testing.T) {
	rules := GetDefaultRules()
	email, phone := rules[0].Pattern, rules[1].Pattern

	emails := map[string]bool{
		"jean.dupont@microsoft.com": true,
		"a+b@sub.example.fr":        true,
		"no-at-sign.example.com":    false,
		"user@localhost":            false,
	}
	for input, want := range emails {
		if got := email.MatchString(input); got != want {
			t.Errorf("email %q: got %v, want %v", input, got, want)
		}
	}

	phones := map[string]bool{
		"06.12.34.56.78":    true,
		"0612345678":        true,
		"04 78 90 12 34":    true,
		"+33 6-12-34-56-78": false,
		"+33612345678":      true,
		"00.12.34.56.78":    false,
		"06.12.34":          false,
	}
	for input, want := range phones {
		if got := phone.FindString(input) == input; got != want {
			t.Errorf("phone %q: got %v, want %v", input, got, want)
		}
	}
}

func TestScanAndReplace(t *testing.T) {
	s := newScanner(t, "all")
	reg := registry.New(registry.DefaultOptions())
	emailRule := s.Rules()[0]

	text := "Écrire à jean@acme.fr, JEAN@ACME.FR ou marie@acme.fr."
	got, finding := s.ScanAndReplace(text, emailRule, reg, registry.ModeConsistent)

	want := "Écrire à email1@example.com, email1@example.com ou email2@example.com."
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if finding.Count != 3 {
		t.Errorf("expected 3 matches, got %d", finding.Count)
	}
	if len(finding.Masked) != 2 {
		t.Errorf("expected 2 distinct pseudonyms, got %v", finding.Masked)
	}
	if finding.EntityType != entity.Email {
		t.Errorf("unexpected type %s", finding.EntityType)
	}
}

func TestScanAndReplaceKeepsPseudonyms(t *testing.T) {
	s := newScanner(t, "all")
	reg := registry.New(registry.DefaultOptions())
	emailRule := s.Rules()[0]

	issued := reg.Resolve("jean@acme.fr", entity.Email, registry.ModeConsistent)
	text := "Écrire à " + issued + " ou marie@acme.fr."

	got, finding := s.ScanAndReplace(text, emailRule, reg, registry.ModeConsistent)

	want := "Écrire à email1@example.com ou email2@example.com."
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
	if finding.Count != 1 {
		t.Errorf("only the new address counts as a match, got %d", finding.Count)
	}
	if _, ok := reg.Lookup(issued, entity.Email); ok {
		t.Errorf("pseudonym %q must not become a registry key", issued)
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 registry entries, got %d", reg.Len())
	}
}

func TestProcess(t *testing.T) {
	text := "Son email est jean.dupont@microsoft.com. Son téléphone est le 06.12.34.56.78, sinon 04.78.90.12.34."

	t.Run("AllEnabled", func(t *testing.T) {
		s := newScanner(t, "all")
		reg := registry.New(registry.DefaultOptions())

		result := s.Process(text, reg, registry.MaskAll(registry.ModeConsistent))

		want := "Son email est email1@example.com. Son téléphone est le 01.XX.XX.XX.XX, sinon 02.XX.XX.XX.XX."
		if result.MaskedText != want {
			t.Errorf("got  %q\nwant %q", result.MaskedText, want)
		}
		if len(result.Findings) != 2 {
			t.Fatalf("expected 2 findings, got %d", len(result.Findings))
		}
		if result.Findings[0].Rule != RuleEmail || result.Findings[1].Rule != RulePhone {
			t.Errorf("findings out of rule order: %+v", result.Findings)
		}
		if reg.Len() != 3 {
			t.Errorf("expected 3 registry entries, got %d", reg.Len())
		}
	})

	t.Run("PolicyGatesTypes", func(t *testing.T) {
		s := newScanner(t, "all")
		policy := registry.MaskAll(registry.ModeConsistent)
		policy.Mask[entity.Phone] = false

		result := s.Process(text, registry.New(registry.DefaultOptions()), policy)
		if result.MaskedText != "Son email est email1@example.com. Son téléphone est le 06.12.34.56.78, sinon 04.78.90.12.34." {
			t.Errorf("unexpected text %q", result.MaskedText)
		}
	})

	t.Run("DisabledRule", func(t *testing.T) {
		s := newScanner(t, "all")
		if err := s.DisableRule(RuleEmail); err != nil {
			t.Fatalf("DisableRule: %v", err)
		}
		result := s.Process(text, registry.New(registry.DefaultOptions()), registry.MaskAll(registry.ModePlaceholder))
		want := "Son email est jean.dupont@microsoft.com. Son téléphone est le [PHONE], sinon [PHONE]."
		if result.MaskedText != want {
			t.Errorf("got  %q\nwant %q", result.MaskedText, want)
		}
	})

	t.Run("SharedRegistryWithNER", func(t *testing.T) {
		s := newScanner(t, "all")
		reg := registry.New(registry.DefaultOptions())
		// Already assigned while rewriting detector spans
		first := reg.Resolve("jean.dupont@microsoft.com", entity.Email, registry.ModeConsistent)

		result := s.Process("contact: Jean.Dupont@Microsoft.com", reg, registry.MaskAll(registry.ModeConsistent))
		if result.MaskedText != "contact: "+first {
			t.Errorf("expected reuse of %q, got %q", first, result.MaskedText)
		}
	})

	t.Run("RuleToggles", func(t *testing.T) {
		s := newScanner(t)
		if len(s.GetEnabledRules()) != 0 {
			t.Fatal("no rules should be enabled")
		}
		if err := s.EnableRule("fax"); err == nil {
			t.Error("expected error for unknown rule")
		}
		if err := s.EnableRule(RulePhone); err != nil {
			t.Errorf("EnableRule: %v", err)
		}
		if err := s.DisableRule("fax"); err == nil {
			t.Error("expected error for unknown rule")
		}
	})
}
