package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonsonwune/colegio_db/models"
)

func TestMapHeadersSynonyms(t *testing.T) {
	headers := []string{"R.U.T.", "Nombre Completo", "Curso", "SECCIÓN", "Asignatura", "Fecha", "Nota"}

	cols, matches, err := MapHeaders(headers, nil)
	require.NoError(t, err)
	assert.Equal(t, ColumnMap{
		FieldRUT:      0,
		FieldFullName: 1,
		FieldCourse:   2,
		FieldSection:  3,
		FieldSubject:  4,
		FieldDate:     5,
		FieldScore:    6,
	}, cols)
	for _, m := range matches {
		assert.Equal(t, 1.0, m.Confidence, m.Field)
	}
}

func TestMapHeadersFuzzy(t *testing.T) {
	headers := []string{"Rut", "Cursos", "Asignaturas", "Fechas", "Calificación Final"}

	cols, matches, err := MapHeaders(headers, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cols[FieldCourse])
	assert.Equal(t, 2, cols[FieldSubject])
	assert.Equal(t, 3, cols[FieldDate])
	assert.False(t, cols.Has(FieldScore), "low-confidence headers are not auto-accepted")

	var fuzzy []string
	for _, m := range matches {
		if m.Confidence < 1 {
			assert.GreaterOrEqual(t, m.Confidence, AutoAcceptConfidence)
			fuzzy = append(fuzzy, m.Field)
		}
	}
	assert.ElementsMatch(t, []string{FieldCourse, FieldSubject, FieldDate}, fuzzy)
}

func TestMapHeadersOverrides(t *testing.T) {
	headers := []string{"Identificador", "Alumno", "Nivel", "Ramo", "Día del registro"}

	cols, _, err := MapHeaders(headers, map[string]string{
		FieldRUT:  "identificador",
		FieldDate: "Dia del Registro",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cols[FieldRUT])
	assert.Equal(t, 1, cols[FieldFullName])
	assert.Equal(t, 2, cols[FieldCourse])
	assert.Equal(t, 3, cols[FieldSubject])
	assert.Equal(t, 4, cols[FieldDate])

	_, _, err = MapHeaders(headers, map[string]string{FieldRUT: "RUN"})
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestMapHeadersMissing(t *testing.T) {
	_, _, err := MapHeaders([]string{"Nombre", "Asignatura"}, nil)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.ErrorContains(t, err, "course or compound_id")
	assert.ErrorContains(t, err, "date")
}

func TestColumnMapGet(t *testing.T) {
	cols := ColumnMap{FieldRUT: 0, FieldSubject: 3}
	row := []string{" 1-9 ", "x"}

	assert.Equal(t, "1-9", cols.Get(row, FieldRUT))
	assert.Equal(t, "", cols.Get(row, FieldSubject))
	assert.Equal(t, "", cols.Get(row, FieldDate))
}

func TestLoadColumnMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "columns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  rut: RUN Alumno\n  subject: Ramo\n"), 0o644))

	overrides, err := LoadColumnMap(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{FieldRUT: "RUN Alumno", FieldSubject: "Ramo"}, overrides)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("columns:\n  apoderado: Nombre\n"), 0o644))
	_, err = LoadColumnMap(bad)
	assert.ErrorContains(t, err, `unknown field "apoderado"`)

	_, err = LoadColumnMap(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"curso", "", 5},
		{"curso", "cursos", 1},
		{"seccion", "sección", 1},
		{"fecha", "fecha", 0},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshteinDistance(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
	assert.InDelta(t, 5.0/6.0, similarity("curso", "cursos"), 1e-9)
}

func TestToCandidate(t *testing.T) {
	cols := ColumnMap{
		FieldRUT: 0, FieldFullName: 1, FieldCourse: 2, FieldSection: 3,
		FieldSubject: 4, FieldType: 5, FieldDate: 6, FieldScore: 7, FieldStatus: 8, FieldRole: 9,
	}

	c, err := toCandidate(2, []string{"1-9", "Ana", "1° Básico", "A", "Arte", "Calificación", "15.04.2024", "6,8", "", ""}, cols, "", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, models.RecordTypeGrade, c.Type)
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), c.Date)
	require.NotNil(t, c.Score)
	assert.Equal(t, 6.8, *c.Score)

	c, err = toCandidate(3, []string{"1-9", "Ana", "1° Básico", "A", "Arte", "asistencia", "2024-04-15", "", "Justificada", "Alumna"}, cols, "", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceJustified, c.Status)

	tests := []struct {
		name string
		row  []string
		want string
	}{
		{"bad date", []string{"1-9", "Ana", "1°", "A", "Arte", "nota", "ayer", "6", "", ""}, FieldDate},
		{"bad score", []string{"1-9", "Ana", "1°", "A", "Arte", "nota", "2024-04-15", "seis", "", ""}, FieldScore},
		{"staff", []string{"1-9", "Ana", "1°", "A", "Arte", "nota", "2024-04-15", "6", "", "Profesora"}, FieldRole},
		{"grade without score", []string{"1-9", "Ana", "1°", "A", "Arte", "nota", "2024-04-15", "", "", ""}, ""},
		{"unknown status", []string{"1-9", "Ana", "1°", "A", "Arte", "asistencia", "2024-04-15", "", "quizás", ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := toCandidate(4, tt.row, cols, "", time.UTC)
			var ie *ImportError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, CodeInvalidRow, ie.Code)
			assert.Equal(t, tt.want, ie.Context["field"])
		})
	}
}
