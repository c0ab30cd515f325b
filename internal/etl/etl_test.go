package etl

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/text-pseudonymizer/internal/synth"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	want := []string{"Jean Dupont", "Marie Curie", "Jean Dupont"}

	tests := []struct {
		name string
		file string
		body string
	}{
		{"Text", "persons.txt", "  Jean Dupont \n\nMarie Curie\n   \nJean Dupont\n"},
		{"CSV", "persons.csv", "name,city\nJean Dupont,Paris\nMarie Curie,Lyon\n ,Nice\nJean Dupont,Lille\n"},
		{"JSON", "persons.json", `["Jean Dupont", "Marie Curie", "", "Jean Dupont"]`},
		{"UnknownExtension", "persons.lst", "Jean Dupont\nMarie Curie\nJean Dupont"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadDirectory(writeFile(t, dir, tt.file, tt.body))
			if err != nil {
				t.Fatalf("LoadDirectory failed: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}

	t.Run("Parquet", func(t *testing.T) {
		path := filepath.Join(dir, "persons.parquet")
		file, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		writer := parquet.NewGenericWriter[nameRow](file)
		if _, err := writer.Write([]nameRow{{Name: "Jean Dupont"}, {Name: "Marie Curie"}, {Name: " "}, {Name: "Jean Dupont"}}); err != nil {
			t.Fatalf("write parquet: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatal(err)
		}
		file.Close()

		got, err := LoadDirectory(path)
		if err != nil {
			t.Fatalf("LoadDirectory failed: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("NotFound", func(t *testing.T) {
		path := filepath.Join(dir, "missing.txt")
		_, err := LoadDirectory(path)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		var loadErr *LoadError
		if !errors.As(err, &loadErr) || loadErr.Path != path {
			t.Errorf("expected LoadError for %s, got %v", path, err)
		}
	})

	t.Run("BadJSON", func(t *testing.T) {
		_, err := LoadDirectory(writeFile(t, dir, "bad.json", `{"names": 1}`))
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("expected ErrDecode, got %v", err)
		}
	})

	t.Run("BadParquet", func(t *testing.T) {
		_, err := LoadDirectory(writeFile(t, dir, "bad.parquet", "not parquet"))
		if err == nil {
			t.Fatal("expected error for corrupt parquet")
		}
	})

	t.Run("PoolsAbortOnFailure", func(t *testing.T) {
		good := writeFile(t, dir, "good.txt", "Acme\n")
		_, err := LoadPools(Sources{Organizations: []string{good, filepath.Join(dir, "nope.txt")}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLoadTemplates(t *testing.T) {
	path := writeFile(t, t.TempDir(), "templates.txt", "{PERSON} travaille chez {ORG}.\n\n  {PERSON} habite à {LOC}.  \n")
	got, err := LoadTemplates(path)
	if err != nil {
		t.Fatalf("LoadTemplates failed: %v", err)
	}
	want := []string{"{PERSON} travaille chez {ORG}.", "{PERSON} habite à {LOC}."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLoadPools(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "p1.txt", "Jean\nMarie\n")
	p2 := writeFile(t, dir, "p2.json", `["Paul"]`)
	loc := writeFile(t, dir, "loc.csv", "ville\nParis\n")

	pools, err := LoadPools(Sources{Persons: []string{p1, p2}, Locations: []string{loc}})
	if err != nil {
		t.Fatalf("LoadPools failed: %v", err)
	}
	if !reflect.DeepEqual(pools.Persons, []string{"Jean", "Marie", "Paul"}) {
		t.Errorf("unexpected persons %v", pools.Persons)
	}
	if len(pools.Organizations) != 0 {
		t.Errorf("expected no organizations, got %v", pools.Organizations)
	}
	if !reflect.DeepEqual(pools.Locations, []string{"Paris"}) {
		t.Errorf("unexpected locations %v", pools.Locations)
	}
}

func sampleExamples() []synth.Example {
	return []synth.Example{
		{
			Text: "Jean Dupont travaille chez Microsoft.",
			Entities: []synth.Annotation{
				{Start: 0, End: 11, Label: synth.KindPerson},
				{Start: 27, End: 36, Label: synth.KindOrg},
			},
		},
		{
			Text:     "Séjour à Orléans.",
			Entities: []synth.Annotation{{Start: 9, End: 16, Label: synth.KindLoc}},
		},
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training.json")
	if err := ExportTrainingData(path, sampleExamples()); err != nil {
		t.Fatalf("ExportTrainingData failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Orléans") {
		t.Error("non-ASCII text should be written unescaped")
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Error("expected two-space indentation")
	}

	var raw []struct {
		Text     string          `json:"text"`
		Entities [][]interface{} `json:"entities"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(raw))
	}
	first := raw[0].Entities[0]
	if first[0].(float64) != 0 || first[1].(float64) != 11 || first[2].(string) != "PERSON" {
		t.Errorf("unexpected annotation %v", first)
	}
}

func TestExportEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := ExportTrainingData(path, nil); err != nil {
		t.Fatalf("ExportTrainingData failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("expected empty array, got %q", data)
	}
}

func TestExportJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training.jsonl")
	if err := ExportTrainingData(path, sampleExamples()); err != nil {
		t.Fatalf("ExportTrainingData failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var got []synth.Example
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ex synth.Example
		if err := json.Unmarshal(scanner.Bytes(), &ex); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		got = append(got, ex)
	}
	if !reflect.DeepEqual(got, sampleExamples()) {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training.parquet")
	if err := ExportTrainingData(path, sampleExamples()); err != nil {
		t.Fatalf("ExportTrainingData failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var rows []trainingRow
	for {
		var row trainingRow
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read parquet: %v", err)
		}
		rows = append(rows, row)
	}

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1].Text != "Séjour à Orléans." {
		t.Errorf("unexpected text %q", rows[1].Text)
	}
	if len(rows[0].Entities) != 2 || rows[0].Entities[1].Label != "ORG" || rows[0].Entities[1].End != 36 {
		t.Errorf("unexpected entities %+v", rows[0].Entities)
	}
}
