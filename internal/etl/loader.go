package etl

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/text-pseudonymizer/internal/synth"
)

// LoadDirectory reads a name directory. Values are trimmed and blank values
// are skipped; order and duplicates are kept.
func LoadDirectory(path string) ([]string, error) {
	file, err := open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	switch DetectFileFormat(path) {
	case FormatCSV:
		names, err = readCSV(file)
	case FormatJSON:
		names, err = readJSON(file)
	case FormatParquet:
		names, err = readParquet(file)
	default:
		names, err = readLines(file)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}

	return names, nil
}

// LoadTemplates reads one template per line
func LoadTemplates(path string) ([]string, error) {
	file, err := open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	templates, err := readLines(file)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return templates, nil
}

// LoadPools loads every listed directory and appends its values to the pool
// of its kind, in file order. The first failing file aborts the load.
func LoadPools(src Sources) (synth.Pools, error) {
	var pools synth.Pools

	groups := []struct {
		kind  synth.Kind
		paths []string
	}{
		{synth.KindPerson, src.Persons},
		{synth.KindOrg, src.Organizations},
		{synth.KindLoc, src.Locations},
	}

	for _, g := range groups {
		for _, path := range g.paths {
			names, err := LoadDirectory(path)
			if err != nil {
				return synth.Pools{}, err
			}
			pools.Add(g.kind, names...)
		}
	}

	return pools, nil
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Err: ErrNotFound}
		}
		return nil, &LoadError{Path: path, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return file, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// readCSV returns the first column of every record after the header
func readCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var names []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) == 0 {
			continue
		}
		if name := strings.TrimSpace(record[0]); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func readJSON(r io.Reader) ([]string, error) {
	var raw []string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func readParquet(file *os.File) ([]string, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	// NewReader panics on malformed input, so open the footer first
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, err
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	var names []string
	for {
		var row nameRow
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if name := strings.TrimSpace(row.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
