package etl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/text-pseudonymizer/internal/synth"
)

// ExportTrainingData writes examples to path in the format implied by its
// extension: a JSON array (.json, the default), one object per line (.jsonl)
// or parquet rows (.parquet).
func ExportTrainingData(path string, examples []synth.Example) error {
	if examples == nil {
		examples = []synth.Example{}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(path) {
	case FormatJSONL:
		err = writeJSONL(file, examples)
	case FormatParquet:
		err = writeParquet(file, examples)
	default:
		err = writeJSON(file, examples)
	}
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return file.Close()
}

func writeJSON(file *os.File, examples []synth.Example) error {
	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(examples)
}

func writeJSONL(file *os.File, examples []synth.Example) error {
	w := bufio.NewWriter(file)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, ex := range examples {
		if err := encoder.Encode(ex); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeParquet(file *os.File, examples []synth.Example) error {
	rows := make([]trainingRow, len(examples))
	for i, ex := range examples {
		rows[i].Text = ex.Text
		rows[i].Entities = make([]parquetAnnotation, len(ex.Entities))
		for j, a := range ex.Entities {
			rows[i].Entities[j] = parquetAnnotation{
				Start: int64(a.Start),
				End:   int64(a.End),
				Label: string(a.Label),
			}
		}
	}

	writer := parquet.NewGenericWriter[trainingRow](file)
	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return writer.Close()
}
