package importer

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nonsonwune/colegio_db/normalize"
)

// Logical columns of an import file.
const (
	FieldRUT        = "rut"
	FieldFullName   = "full_name"
	FieldRole       = "role"
	FieldCourse     = "course"
	FieldSection    = "section"
	FieldCompoundID = "compound_id"
	FieldSubject    = "subject"
	FieldType       = "type"
	FieldDate       = "date"
	FieldScore      = "score"
	FieldStatus     = "status"
)

// AutoAcceptConfidence is the similarity above which a fuzzy header match
// is taken without asking.
const AutoAcceptConfidence = 0.8

// ErrMissingColumns is returned when a file lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// headerSynonyms lists the header spellings seen in exports, in preference
// order. The field name itself is always tried first.
var headerSynonyms = map[string][]string{
	FieldRUT:        {"rut", "run", "rut alumno", "rut estudiante"},
	FieldFullName:   {"nombre", "nombre completo", "alumno", "estudiante", "name"},
	FieldRole:       {"rol", "tipo usuario"},
	FieldCourse:     {"curso", "nivel", "grado"},
	FieldSection:    {"seccion", "letra", "paralelo"},
	FieldCompoundID: {"id curso", "curso id", "course id", "id seccion"},
	FieldSubject:    {"asignatura", "materia", "ramo"},
	FieldType:       {"tipo", "tipo registro", "record type"},
	FieldDate:       {"fecha", "dia"},
	FieldScore:      {"nota", "calificacion", "puntaje", "grade"},
	FieldStatus:     {"estado", "asistencia"},
}

// fieldOrder fixes the order headers are claimed in, so a header that could
// serve two fields goes to the more specific one.
var fieldOrder = []string{
	FieldCompoundID, FieldRUT, FieldFullName, FieldRole, FieldCourse, FieldSection,
	FieldSubject, FieldType, FieldDate, FieldScore, FieldStatus,
}

// ColumnMatch represents a header chosen for a field, with its confidence.
type ColumnMatch struct {
	Field      string
	Header     string
	Index      int
	Confidence float64
}

// ColumnMap maps logical fields onto header positions.
type ColumnMap map[string]int

// Get returns the trimmed value of field in row, or "" when the column is
// absent or the row is short.
func (m ColumnMap) Get(row []string, field string) string {
	idx, ok := m[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Has reports whether field was found in the headers.
func (m ColumnMap) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// headerKey folds a header for comparison: lowercase, no accents, no spaces
// or underscores.
func headerKey(s string) string {
	return normalize.Token(s)
}

// getColumnIndex returns the index of the header equal to column after
// folding, or -1.
func getColumnIndex(headers []string, column string) int {
	want := headerKey(column)
	if want == "" {
		return -1
	}
	for i, header := range headers {
		if headerKey(header) == want {
			return i
		}
	}
	return -1
}

// findBestColumnMatch scores every unclaimed header against the field and
// its synonyms, best first.
func findBestColumnMatch(field string, headers []string, claimed map[int]bool) []ColumnMatch {
	names := append([]string{field}, headerSynonyms[field]...)
	matches := make([]ColumnMatch, 0)

	for i, header := range headers {
		if claimed[i] {
			continue
		}
		source := headerKey(header)
		if source == "" {
			continue
		}
		best := 0.0
		for _, name := range names {
			if c := similarity(source, headerKey(name)); c > best {
				best = c
			}
		}
		if best > 0.6 {
			matches = append(matches, ColumnMatch{Field: field, Header: header, Index: i, Confidence: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// MapHeaders resolves every logical field to a header. overrides maps a
// field to the exact header to use and wins over everything else. Exact and
// folded matches come next; fuzzy matches are accepted only at or above
// AutoAcceptConfidence. The returned matches record how each field was
// found.
func MapHeaders(headers []string, overrides map[string]string) (ColumnMap, []ColumnMatch, error) {
	cols := make(ColumnMap)
	claimed := make(map[int]bool)
	var matches []ColumnMatch

	claim := func(field, header string, idx int, confidence float64) {
		cols[field] = idx
		claimed[idx] = true
		matches = append(matches, ColumnMatch{Field: field, Header: header, Index: idx, Confidence: confidence})
	}

	for _, field := range fieldOrder {
		if header, ok := overrides[field]; ok {
			idx := getColumnIndex(headers, header)
			if idx == -1 {
				return nil, nil, fmt.Errorf("%w: column map names %q for %s, not in file", ErrMissingColumns, header, field)
			}
			claim(field, headers[idx], idx, 1)
		}
	}

	// exact and folded matches first so a fuzzy match never steals a header
	for _, field := range fieldOrder {
		if cols.Has(field) {
			continue
		}
		for _, name := range append([]string{field}, headerSynonyms[field]...) {
			if idx := getColumnIndex(headers, name); idx != -1 && !claimed[idx] {
				claim(field, headers[idx], idx, 1)
				break
			}
		}
	}

	for _, field := range fieldOrder {
		if cols.Has(field) {
			continue
		}
		if best := findBestColumnMatch(field, headers, claimed); len(best) > 0 && best[0].Confidence >= AutoAcceptConfidence {
			claim(field, best[0].Header, best[0].Index, best[0].Confidence)
		}
	}

	return cols, matches, checkRequired(cols)
}

func checkRequired(cols ColumnMap) error {
	var missing []string
	if !cols.Has(FieldRUT) && !cols.Has(FieldFullName) {
		missing = append(missing, FieldRUT+" or "+FieldFullName)
	}
	if !cols.Has(FieldCourse) && !cols.Has(FieldCompoundID) {
		missing = append(missing, FieldCourse+" or "+FieldCompoundID)
	}
	for _, field := range []string{FieldSubject, FieldDate} {
		if !cols.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

type columnMapFile struct {
	Columns map[string]string `yaml:"columns"`
}

// LoadColumnMap reads a YAML file of field overrides:
//
//	columns:
//	  rut: RUN Alumno
//	  subject: Asignatura
func LoadColumnMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading column map: %w", err)
	}

	var file columnMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing column map %s: %w", path, err)
	}
	for field := range file.Columns {
		if _, ok := headerSynonyms[field]; !ok {
			return nil, fmt.Errorf("column map %s: unknown field %q", path, field)
		}
	}
	return file.Columns, nil
}
