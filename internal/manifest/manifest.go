// Package manifest reads batch-submit inputs: one row per gage with its own date range.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// FieldMapping names the input columns holding the gage id and date window.
type FieldMapping struct {
	GageIDField string
	StartField  string
	EndField    string
}

// DefaultMapping is the column layout used when no overrides are given.
func DefaultMapping() FieldMapping {
	return FieldMapping{GageIDField: "gage_id", StartField: "start_date", EndField: "end_date"}
}

func (m FieldMapping) withDefaults() FieldMapping {
	d := DefaultMapping()
	if m.GageIDField == "" {
		m.GageIDField = d.GageIDField
	}
	if m.StartField == "" {
		m.StartField = d.StartField
	}
	if m.EndField == "" {
		m.EndField = d.EndField
	}
	return m
}

// Validate fails with a FieldError for the first mapped field missing from columns.
func (m FieldMapping) Validate(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, f := range []string{m.GageIDField, m.StartField, m.EndField} {
		if !present[f] {
			return &FieldError{Field: f, Available: columns}
		}
	}
	return nil
}

// FieldError reports a mapped field absent from the input.
type FieldError struct {
	Field     string
	Available []string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q not found in input; available columns: %s", e.Field, strings.Join(e.Available, ", "))
}

// RowError reports an invalid row. Line is 1-based and counts the CSV header.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Row is one validated manifest entry.
type Row struct {
	Line   int
	GageID string
	Range  daterange.Range
}

// Load reads a CSV (.csv) or YAML (.yaml, .yml) manifest. The mapping is
// checked against the input columns before any row is parsed.
func Load(path string, mapping FieldMapping) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, mapping)
	case ".yaml", ".yml":
		return ReadYAML(f, mapping)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadCSV parses a manifest with a header row.
func ReadCSV(r io.Reader, mapping FieldMapping) ([]Row, error) {
	mapping = mapping.withDefaults()

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FieldError{Field: mapping.GageIDField}
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if err := mapping.Validate(header); err != nil {
		return nil, err
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Line: line, Reason: err.Error()}
		}
		row, err := parseRow(line, mapping, func(field string) string {
			return strings.TrimSpace(rec[col[field]])
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadYAML parses a manifest that is a YAML sequence of maps.
func ReadYAML(r io.Reader, mapping FieldMapping) ([]Row, error) {
	mapping = mapping.withDefaults()

	var docs []map[string]string
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	seen := make(map[string]bool)
	var columns []string
	for _, d := range docs {
		for k := range d {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	if err := mapping.Validate(columns); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(docs))
	for i, d := range docs {
		row, err := parseRow(i+1, mapping, func(field string) string {
			return strings.TrimSpace(d[field])
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(line int, m FieldMapping, get func(string) string) (Row, error) {
	gage := get(m.GageIDField)
	if gage == "" {
		return Row{}, &RowError{Line: line, Reason: fmt.Sprintf("blank %s", m.GageIDField)}
	}
	r, err := daterange.Parse(get(m.StartField), get(m.EndField))
	if err != nil {
		return Row{}, &RowError{Line: line, Reason: fmt.Sprintf("gage %s: %v", gage, err)}
	}
	return Row{Line: line, GageID: gage, Range: r}, nil
}
