package etl

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when a source file does not exist
	ErrNotFound = errors.New("file not found")
	// ErrDecode is returned when a source file cannot be read or parsed
	ErrDecode = errors.New("failed to decode file")
)

// LoadError reports a failed load of a single file
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatText    FileFormat = "txt"
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatJSONL   FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension. Unknown extensions
// are read as plain text.
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	case ".json":
		return FormatJSON
	case ".jsonl":
		return FormatJSONL
	default:
		return FormatText
	}
}

// Sources lists name directory files per placeholder kind
type Sources struct {
	Persons       []string
	Organizations []string
	Locations     []string
}

// nameRow is the parquet layout of a name directory
type nameRow struct {
	Name string `parquet:"name"`
}

type parquetAnnotation struct {
	Start int64  `parquet:"start"`
	End   int64  `parquet:"end"`
	Label string `parquet:"label"`
}

// trainingRow is the parquet layout of one synthesized example
type trainingRow struct {
	Text     string              `parquet:"text"`
	Entities []parquetAnnotation `parquet:"entities"`
}
