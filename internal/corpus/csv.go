package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"firassist/internal/domain"
)

// LoadCSV reads a corpus from a CSV file with a header row.
func LoadCSV(path string, cols Columns) ([]domain.CorpusEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return ReadCSV(path, f, cols)
}

// ReadCSV parses CSV corpus data from r. name is used in errors only.
func ReadCSV(name string, r io.Reader, cols Columns) ([]domain.CorpusEntry, error) {
	cols = cols.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: name, Err: ErrEmptyCorpus}
		}
		return nil, &LoadError{Source: name, Line: 1, Err: err}
	}
	secIdx, descIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, cols.Section):
			secIdx = i
		case strings.EqualFold(h, cols.Description):
			descIdx = i
		}
	}
	if secIdx < 0 {
		return nil, &LoadError{Source: name, Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingColumn, cols.Section)}
	}
	if descIdx < 0 {
		return nil, &LoadError{Source: name, Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingColumn, cols.Description)}
	}

	var recs []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &LoadError{Source: name, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if secIdx >= len(fields) || descIdx >= len(fields) {
			return nil, &LoadError{Source: name, Line: line, Err: errors.New("short record")}
		}
		recs = append(recs, record{line: line, section: fields[secIdx], description: fields[descIdx]})
	}
	return buildEntries(name, recs)
}
