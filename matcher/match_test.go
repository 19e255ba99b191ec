package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonsonwune/colegio_db/models"
)

func testRoster(t *testing.T) *RosterIndex {
	t.Helper()
	ix, err := NewRosterIndex([]models.Student{
		{ID: "S1", RUT: "12345678-5", FullName: "Ana Rojas", CourseName: "1° Básico", SectionName: "A"},
		{ID: "S2", RUT: "11.111.111-1", FullName: "Juan Perez", CourseName: "2° Básico", SectionName: "A"},
		{ID: "S3", RUT: "22.222.222-2", FullName: "Juan Pérez", CourseName: "3° Básico", SectionName: "B"},
		{ID: "S4", RUT: "7.654.321-K", FullName: "Camila Soto", CourseName: "IV Medio", SectionName: "C"},
		{ID: "T1", RUT: "9.999.999-3", FullName: "Pedro Lagos", Role: "Profesor"},
	})
	require.NoError(t, err)
	return ix
}

func TestNewRosterIndexEmpty(t *testing.T) {
	_, err := NewRosterIndex(nil)
	assert.ErrorIs(t, err, ErrEmptyRoster)

	_, err = NewRosterIndex([]models.Student{{ID: "T1", Role: "docente"}})
	assert.ErrorIs(t, err, ErrEmptyRoster)
}

func TestRosterIndexSkipsStaff(t *testing.T) {
	ix := testRoster(t)
	assert.Equal(t, 4, ix.Len())

	res := MatchStudent(models.CandidateRecord{RUT: "9.999.999-3"}, ix)
	assert.Equal(t, NoMatch, res.Outcome)
}

func TestMatchStudentByFormattedRUT(t *testing.T) {
	ix := testRoster(t)

	res := MatchStudent(models.CandidateRecord{
		RUT:     "12.345.678-5",
		Course:  "Primero Básico",
		Section: "A",
	}, ix)

	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "S1", res.ID)
	assert.Equal(t, ViaRUT, res.Via)
	assert.False(t, res.PlacementMismatch)
}

func TestMatchStudentPlacementMismatch(t *testing.T) {
	ix := testRoster(t)

	res := MatchStudent(models.CandidateRecord{
		RUT:     "12345678-5",
		Course:  "1ro Basico",
		Section: "B",
	}, ix)

	assert.True(t, res.OK())
	assert.Equal(t, "S1", res.ID)
	assert.True(t, res.PlacementMismatch)
}

func TestMatchStudentLowercaseCheckCharacter(t *testing.T) {
	ix := testRoster(t)

	res := MatchStudent(models.CandidateRecord{RUT: "7654321-k", Course: "4to Medio", Section: "Sección C"}, ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "S4", res.ID)
	assert.False(t, res.PlacementMismatch)
}

func TestMatchStudentAmbiguousName(t *testing.T) {
	ix := testRoster(t)

	res := MatchStudent(models.CandidateRecord{FullName: "Juan Pérez"}, ix)

	assert.Equal(t, Ambiguous, res.Outcome)
	assert.Empty(t, res.ID)
	assert.ElementsMatch(t, []string{"S2", "S3"}, res.Candidates)
}

func TestMatchStudentNameFallback(t *testing.T) {
	ix := testRoster(t)

	// Unknown RUT falls through to the name key.
	res := MatchStudent(models.CandidateRecord{RUT: "1-9", FullName: "ANA  ROJAS"}, ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "S1", res.ID)
	assert.Equal(t, ViaName, res.Via)
	assert.Equal(t, []string{"rut:19", "name:ana rojas"}, res.Attempted)
	assert.True(t, res.RUTConflict)

	// Without a declared RUT there is nothing to disagree with.
	res = MatchStudent(models.CandidateRecord{FullName: "Ana Rojas"}, ix)
	assert.Equal(t, "S1", res.ID)
	assert.False(t, res.RUTConflict)
}

func TestMatchStudentRepeatedRosterRow(t *testing.T) {
	ana := models.Student{ID: "S1", RUT: "12345678-5", FullName: "Ana Rojas", CourseName: "1° Básico", SectionName: "A"}
	ix, err := NewRosterIndex([]models.Student{ana, ana})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Conflicts())

	res := MatchStudent(models.CandidateRecord{RUT: "12.345.678-5"}, ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "S1", res.ID)
	assert.Empty(t, res.Candidates)

	res = MatchStudent(models.CandidateRecord{FullName: "ana rojas"}, ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "S1", res.ID)
}

func TestMatchStudentRepeatedRosterRowConflict(t *testing.T) {
	ix, err := NewRosterIndex([]models.Student{
		{ID: "S1", RUT: "12345678-5", FullName: "Ana Rojas"},
		{ID: "S1", RUT: "11.111.111-1", FullName: "Ana Rojas"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, ix.Conflicts())

	for _, rut := range []string{"12345678-5", "11111111-1"} {
		res := MatchStudent(models.CandidateRecord{RUT: rut}, ix)
		assert.Equal(t, Matched, res.Outcome, rut)
		assert.Equal(t, "S1", res.ID, rut)
	}
}

func TestMatchStudentNoMatch(t *testing.T) {
	ix := testRoster(t)

	res := MatchStudent(models.CandidateRecord{RUT: "5.555.555-5", FullName: "Nadie"}, ix)
	assert.Equal(t, NoMatch, res.Outcome)
	assert.Empty(t, res.ID)

	res = MatchStudent(models.CandidateRecord{}, ix)
	assert.Equal(t, NoMatch, res.Outcome)
	assert.Empty(t, res.Attempted)
}

func TestMatchStudentDuplicateRUTIsAmbiguous(t *testing.T) {
	ix, err := NewRosterIndex([]models.Student{
		{ID: "A", RUT: "12345678-5"},
		{ID: "B", RUT: "12.345.678-5"},
	})
	require.NoError(t, err)

	res := MatchStudent(models.CandidateRecord{RUT: "123456785"}, ix)
	assert.Equal(t, Ambiguous, res.Outcome)
	assert.Equal(t, ViaRUT, res.Via)
}

func testCatalog(t *testing.T) *CourseIndex {
	t.Helper()
	ix, err := NewCourseIndex([]models.Section{
		{ID: "sec-1a", CourseID: "c1", CourseName: "1° Básico", Label: "A"},
		{ID: "sec-1b", CourseID: "c1", CourseName: "1° Básico", Label: "B"},
		{ID: "sec-4mc", CourseID: "course-with-dash", CourseName: "IV Medio", Label: "C"},
	}, []models.IDAlias{
		{Kind: models.AliasCourse, LegacyID: "101", ID: "c1"},
		{Kind: models.AliasSection, LegacyID: "7", ID: "sec-1b"},
	})
	require.NoError(t, err)
	return ix
}

func TestNewCourseIndexEmpty(t *testing.T) {
	_, err := NewCourseIndex(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestMatchCourseSection(t *testing.T) {
	ix := testCatalog(t)

	tests := []struct {
		name    string
		course  string
		section string
		outcome Outcome
		id      string
	}{
		{name: "ordinal word", course: "Primero Básico", section: "Sección A", outcome: Matched, id: "sec-1a"},
		{name: "abbreviated", course: "1ro basico", section: "sec b", outcome: Matched, id: "sec-1b"},
		{name: "roman numeral", course: "4to Medio", section: "C", outcome: Matched, id: "sec-4mc"},
		{name: "unknown section", course: "1° Básico", section: "Z", outcome: NoMatch},
		{name: "empty course", course: "", section: "A", outcome: NoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := MatchCourseSection(tt.course, tt.section, ix)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.id, res.ID)
		})
	}
}

func TestMatchCourseSectionAmbiguous(t *testing.T) {
	ix, err := NewCourseIndex([]models.Section{
		{ID: "x", CourseID: "c1", CourseName: "1ro Básico", Label: "A"},
		{ID: "y", CourseID: "c9", CourseName: "Primero Basico", Label: "Sec A"},
	}, nil)
	require.NoError(t, err)

	res := MatchCourseSection("1° Básico", "A", ix)
	assert.Equal(t, Ambiguous, res.Outcome)
	assert.ElementsMatch(t, []string{"x", "y"}, res.Candidates)
}
