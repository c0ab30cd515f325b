package pseudonymizer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
	"github.com/raaihank/text-pseudonymizer/internal/recognizer"
	"github.com/raaihank/text-pseudonymizer/internal/registry"
	"github.com/raaihank/text-pseudonymizer/internal/rewriter"
)

const document = "Jean Dupont travaille chez Acme. Contact: jean.dupont@acme.fr ou 06 12 34 56 78."

func documentSpans() []entity.Span {
	return []entity.Span{
		{Start: 0, End: 11, Type: entity.Person, Text: "Jean Dupont"},
		{Start: 27, End: 31, Type: entity.Organization, Text: "Acme"},
	}
}

func newPseudonymizer(t *testing.T, rec recognizer.Recognizer) *Pseudonymizer {
	t.Helper()
	scanner, err := privacy.New([]string{"all"}, logger.NewNop())
	if err != nil {
		t.Fatalf("privacy.New failed: %v", err)
	}
	return New(rec, scanner, logger.NewNop())
}

type failingRecognizer struct{}

func (failingRecognizer) Recognize(ctx context.Context, text string) ([]entity.Span, error) {
	return nil, errors.New("model unavailable")
}

func (failingRecognizer) Name() string { return "failing" }

func TestProcessSpans(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	reg := NewRegistry(cfg)

	report, err := p.ProcessSpans(document, documentSpans(), reg, PolicyFromConfig(cfg))
	if err != nil {
		t.Fatalf("ProcessSpans failed: %v", err)
	}

	want := "PERSON_1 travaille chez ORGANIZATION_1. Contact: email1@example.com ou 01.XX.XX.XX.XX."
	if report.PseudonymizedText != want {
		t.Errorf("expected %q, got %q", want, report.PseudonymizedText)
	}
	if report.OriginalText != document {
		t.Error("original text must be kept in the report")
	}
	if len(report.Entities) != 2 {
		t.Fatalf("expected 2 applied entities, got %d", len(report.Entities))
	}
	if report.Entities[1].Position() != "27-31" {
		t.Errorf("unexpected position %s", report.Entities[1].Position())
	}
	if len(report.Findings) != 2 || report.PatternMatches() != 2 {
		t.Errorf("expected email and phone findings, got %+v", report.Findings)
	}

	for key, value := range map[string]string{
		"PERSON_jean dupont":        "PERSON_1",
		"ORGANIZATION_acme":         "ORGANIZATION_1",
		"EMAIL_jean.dupont@acme.fr": "email1@example.com",
		"PHONE_06 12 34 56 78":      "01.XX.XX.XX.XX",
	} {
		if report.Correspondences[key] != value {
			t.Errorf("correspondence %s: expected %q, got %q", key, value, report.Correspondences[key])
		}
	}
}

func TestProcessSpansSharedRegistry(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	reg := NewRegistry(cfg)
	policy := PolicyFromConfig(cfg)

	if _, err := p.ProcessSpans(document, documentSpans(), reg, policy); err != nil {
		t.Fatal(err)
	}

	second := "Marie Curie rencontre JEAN DUPONT."
	spans := []entity.Span{
		{Start: 0, End: 11, Type: entity.Person},
		{Start: 22, End: 33, Type: entity.Person},
	}
	report, err := p.ProcessSpans(second, spans, reg, policy)
	if err != nil {
		t.Fatalf("ProcessSpans failed: %v", err)
	}
	if report.PseudonymizedText != "PERSON_2 rencontre PERSON_1." {
		t.Errorf("unexpected output %q", report.PseudonymizedText)
	}
}

func TestProcessSpansPolicy(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	cfg.MaskOrgs = false
	cfg.MaskPhones = false
	cfg.UsePlaceholders = true

	p := newPseudonymizer(t, nil)
	report, err := p.ProcessSpans(document, documentSpans(), NewRegistry(cfg), PolicyFromConfig(cfg))
	if err != nil {
		t.Fatalf("ProcessSpans failed: %v", err)
	}

	want := "[PERSON] travaille chez Acme. Contact: [EMAIL] ou 06 12 34 56 78."
	if report.PseudonymizedText != want {
		t.Errorf("expected %q, got %q", want, report.PseudonymizedText)
	}
}

func TestProcessSpansInvalid(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	reg := NewRegistry(cfg)

	spans := []entity.Span{
		{Start: 0, End: 11, Type: entity.Person},
		{Start: 5, End: 15, Type: entity.Person},
	}
	_, err := p.ProcessSpans(document, spans, reg, PolicyFromConfig(cfg))
	if !errors.Is(err, rewriter.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("registry must be untouched on error, has %d entries", reg.Len())
	}
}

func TestProcess(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization

	t.Run("Recognizer", func(t *testing.T) {
		lex := recognizer.NewLexicon()
		lex.Add(entity.Person, "Jean Dupont")
		lex.Add(entity.Organization, "Acme")

		p := newPseudonymizer(t, lex)
		report, err := p.Process(context.Background(), document, NewRegistry(cfg), PolicyFromConfig(cfg))
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		want := "PERSON_1 travaille chez ORGANIZATION_1. Contact: email1@example.com ou 01.XX.XX.XX.XX."
		if report.PseudonymizedText != want {
			t.Errorf("expected %q, got %q", want, report.PseudonymizedText)
		}
	})

	t.Run("NameInsideEmail", func(t *testing.T) {
		lex := recognizer.NewLexicon()
		lex.Add(entity.Organization, "Acme")

		p := newPseudonymizer(t, lex)
		report, err := p.Process(context.Background(), "Contact: jean.dupont@acme.fr", NewRegistry(cfg), PolicyFromConfig(cfg))
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if want := "Contact: email1@example.com"; report.PseudonymizedText != want {
			t.Errorf("expected %q, got %q", want, report.PseudonymizedText)
		}
		if len(report.Entities) != 0 {
			t.Errorf("expected no recognized entities, got %+v", report.Entities)
		}
	})

	t.Run("RecognizerError", func(t *testing.T) {
		p := newPseudonymizer(t, failingRecognizer{})
		if _, err := p.Process(context.Background(), document, NewRegistry(cfg), PolicyFromConfig(cfg)); err == nil {
			t.Fatal("expected recognition error")
		}
	})
}

func TestProcessSpansRecognizedEmail(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	reg := NewRegistry(cfg)

	text := "Ecrire a jean@acme.fr svp"
	spans := []entity.Span{{Start: 9, End: 21, Type: entity.Email, Text: "jean@acme.fr"}}

	report, err := p.ProcessSpans(text, spans, reg, PolicyFromConfig(cfg))
	if err != nil {
		t.Fatalf("ProcessSpans failed: %v", err)
	}

	if want := "Ecrire a email1@example.com svp"; report.PseudonymizedText != want {
		t.Errorf("expected %q, got %q", want, report.PseudonymizedText)
	}
	if len(report.Entities) != 1 || report.Entities[0].Replacement != "email1@example.com" {
		t.Errorf("applied log disagrees with the text: %+v", report.Entities)
	}
	want := map[string]string{"EMAIL_jean@acme.fr": "email1@example.com"}
	if len(report.Correspondences) != len(want) || report.Correspondences["EMAIL_jean@acme.fr"] != want["EMAIL_jean@acme.fr"] {
		t.Errorf("expected correspondences %v, got %v", want, report.Correspondences)
	}
	if report.PatternMatches() != 0 {
		t.Errorf("the scanner must not count the pseudonym as a match, got %d", report.PatternMatches())
	}

	// a second document in the same registry keeps the same pseudonym
	again, err := p.ProcessSpans("Copie: JEAN@ACME.FR", []entity.Span{{Start: 7, End: 19, Type: entity.Email}}, reg, PolicyFromConfig(cfg))
	if err != nil {
		t.Fatalf("ProcessSpans failed: %v", err)
	}
	if want := "Copie: email1@example.com"; again.PseudonymizedText != want {
		t.Errorf("expected %q, got %q", want, again.PseudonymizedText)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	cfg.MaskDates = false
	cfg.MaskOther = true

	policy := PolicyFromConfig(cfg)
	if policy.Mode != registry.ModeConsistent {
		t.Errorf("expected consistent mode, got %s", policy.Mode)
	}
	if policy.Enabled(entity.Date) {
		t.Error("dates should be disabled")
	}
	if !policy.Enabled(entity.Person) {
		t.Error("persons should be enabled")
	}
	if !policy.Enabled(entity.EntityType("MISC")) {
		t.Error("mask_other should enable unmapped labels")
	}
}

func TestBuildCorrespondenceReport(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	report, err := p.ProcessSpans(document, documentSpans(), NewRegistry(cfg), PolicyFromConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}

	cr := BuildCorrespondenceReport(report, cfg)
	if cr.Statistics.EntitiesFound != 2 {
		t.Errorf("expected 2 entities, got %d", cr.Statistics.EntitiesFound)
	}
	if cr.Statistics.TotalCorrespondences != 4 {
		t.Errorf("expected 4 correspondences, got %d", cr.Statistics.TotalCorrespondences)
	}
	persons := cr.EntitiesByType[entity.Person]
	if len(persons) != 1 || persons[0].Replacement != "PERSON_1" || persons[0].Position != "0-11" {
		t.Errorf("unexpected person records %+v", persons)
	}
}

func TestWriteOutputs(t *testing.T) {
	cfg := config.GetDefaults().Pseudonymization
	p := newPseudonymizer(t, nil)
	text := "Élodie Martin habite à Orléans."
	spans := []entity.Span{
		{Start: 0, End: 13, Type: entity.Person},
		{Start: 23, End: 30, Type: entity.Location},
	}
	report, err := p.ProcessSpans(text, spans, NewRegistry(cfg), PolicyFromConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	out, err := WriteOutputs(dir, "lettre", report, cfg)
	if err != nil {
		t.Fatalf("WriteOutputs failed: %v", err)
	}

	if filepath.Base(out.TextPath) != "lettre_pseudo.txt" || filepath.Base(out.CorrespondencesPath) != "lettre_correspondences.json" {
		t.Errorf("unexpected output names %+v", out)
	}

	pseudo, err := os.ReadFile(out.TextPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(pseudo) != "PERSON_1 habite à LOCATION_1." {
		t.Errorf("unexpected pseudonymized text %q", pseudo)
	}

	data, err := os.ReadFile(out.CorrespondencesPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Élodie Martin") {
		t.Error("correspondence file should keep non-ASCII text unescaped")
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("correspondence file is not JSON: %v", err)
	}
	for _, key := range []string{"config_used", "statistics", "entities_by_type", "correspondences"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
}
