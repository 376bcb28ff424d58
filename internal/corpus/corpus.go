// Package corpus loads the statute section reference table.
//
// Entries are returned in source order; that order fixes each entry's row in
// the fitted vector space and must not change after loading.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"firassist/internal/domain"
)

var (
	// ErrEmptyCorpus is returned when a source has no rows.
	ErrEmptyCorpus = errors.New("corpus has no sections")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("corpus column missing")
)

// LoadError reports a corpus that could not be loaded. Line is 0 when the
// failure is not tied to a specific record.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load corpus %s: line %d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("load corpus %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Config selects a corpus source.
type Config struct {
	Source            string // "csv" or "sql"
	Path              string
	SectionColumn     string
	DescriptionColumn string
	SQL               SQLConfig
}

// Load reads the configured source.
func Load(ctx context.Context, cfg Config) ([]domain.CorpusEntry, error) {
	cols := Columns{Section: cfg.SectionColumn, Description: cfg.DescriptionColumn}
	switch cfg.Source {
	case "csv", "":
		return LoadCSV(cfg.Path, cols)
	case "sql":
		return LoadSQL(ctx, cfg.SQL, cols)
	default:
		return nil, &LoadError{Source: cfg.Source, Err: fmt.Errorf("unknown corpus source %q", cfg.Source)}
	}
}

// Columns names the section and description columns.
type Columns struct {
	Section     string
	Description string
}

func (c Columns) withDefaults() Columns {
	if c.Section == "" {
		c.Section = "Section"
	}
	if c.Description == "" {
		c.Description = "Description"
	}
	return c
}

var sectionNumberRe = regexp.MustCompile(`\d+`)

// SectionNumber returns the first run of digits in a section label, or "".
func SectionNumber(label string) string {
	return sectionNumberRe.FindString(label)
}

// record is one raw row before validation.
type record struct {
	line        int
	section     string
	description string
}

func buildEntries(source string, recs []record) ([]domain.CorpusEntry, error) {
	if len(recs) == 0 {
		return nil, &LoadError{Source: source, Err: ErrEmptyCorpus}
	}
	out := make([]domain.CorpusEntry, 0, len(recs))
	for i, r := range recs {
		label := strings.TrimSpace(r.section)
		desc := strings.TrimSpace(r.description)
		if label == "" {
			return nil, &LoadError{Source: source, Line: r.line, Err: errors.New("empty section label")}
		}
		if desc == "" {
			return nil, &LoadError{Source: source, Line: r.line, Err: errors.New("empty description")}
		}
		out = append(out, domain.CorpusEntry{
			Index:       i,
			Label:       label,
			Number:      SectionNumber(label),
			Description: desc,
		})
	}
	return out, nil
}
