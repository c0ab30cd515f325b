package pseudonymizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/entity"
)

// EntityRecord is one replacement listed under its type
type EntityRecord struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Position    string `json:"position"`
}

// Statistics summarises a document
type Statistics struct {
	EntitiesFound        int `json:"entities_found"`
	TotalCorrespondences int `json:"total_correspondences"`
}

// CorrespondenceReport is the audit artifact written next to the output text
type CorrespondenceReport struct {
	ConfigUsed      config.PseudonymizationConfig        `json:"config_used"`
	Statistics      Statistics                           `json:"statistics"`
	EntitiesByType  map[entity.EntityType][]EntityRecord `json:"entities_by_type"`
	Correspondences map[string]string                    `json:"correspondences"`
}

// BuildCorrespondenceReport groups the applied entities of report by type
func BuildCorrespondenceReport(report *Report, cfg config.PseudonymizationConfig) CorrespondenceReport {
	byType := make(map[entity.EntityType][]EntityRecord)
	for _, e := range report.Entities {
		byType[e.Type] = append(byType[e.Type], EntityRecord{
			Original:    e.Original,
			Replacement: e.Replacement,
			Position:    e.Position(),
		})
	}

	correspondences := report.Correspondences
	if correspondences == nil {
		correspondences = map[string]string{}
	}

	return CorrespondenceReport{
		ConfigUsed: cfg,
		Statistics: Statistics{
			EntitiesFound:        len(report.Entities),
			TotalCorrespondences: len(correspondences),
		},
		EntitiesByType:  byType,
		Correspondences: correspondences,
	}
}

// Output names the files written by WriteOutputs
type Output struct {
	TextPath            string
	CorrespondencesPath string
}

// WriteOutputs writes <base>_pseudo.txt and <base>_correspondences.json into dir
func WriteOutputs(dir, base string, report *Report, cfg config.PseudonymizationConfig) (Output, error) {
	out := Output{
		TextPath:            filepath.Join(dir, base+"_pseudo.txt"),
		CorrespondencesPath: filepath.Join(dir, base+"_correspondences.json"),
	}

	if err := os.WriteFile(out.TextPath, []byte(report.PseudonymizedText), 0o644); err != nil {
		return Output{}, fmt.Errorf("failed to write pseudonymized text: %w", err)
	}

	file, err := os.Create(out.CorrespondencesPath)
	if err != nil {
		return Output{}, fmt.Errorf("failed to create correspondence file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(BuildCorrespondenceReport(report, cfg)); err != nil {
		file.Close()
		return Output{}, fmt.Errorf("failed to write correspondence file: %w", err)
	}

	if err := file.Close(); err != nil {
		return Output{}, fmt.Errorf("failed to close correspondence file: %w", err)
	}

	return out, nil
}
