package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonsonwune/colegio_db/models"
)

var (
	created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	later   = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

func score(v float64) *float64 { return &v }

func grade(id, student string, day int, s float64) models.FactRecord {
	return models.FactRecord{
		ID:        id,
		StudentID: student,
		CourseID:  "c1",
		SectionID: "sec-1a",
		Course:    "1° Básico",
		Section:   "A",
		Subject:   "Matemática",
		Type:      models.RecordTypeGrade,
		Date:      time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC),
		Score:     score(s),
		CreatedAt: created,
	}
}

func TestNaturalKey(t *testing.T) {
	f := grade("f1", "S1", 2, 6.5)
	assert.Equal(t, "s1|1basica|a|matematica|grade|20240402", NaturalKey(f))

	same := f
	same.ID = "other"
	same.Course = "Primero Basico"
	same.Section = "Sección A"
	same.Subject = "MATEMATICA"
	same.Type = "Nota"
	same.Date = f.Date.Add(15 * time.Hour)
	same.Score = score(4.0)
	assert.Equal(t, NaturalKey(f), NaturalKey(same))

	noLabels := f
	noLabels.Course, noLabels.Section = "", ""
	assert.Equal(t, "s1|id:c1|id:sec1a|matematica|grade|20240402", NaturalKey(noLabels))
}

func TestNaturalKeyKeepsCatalogIDsApart(t *testing.T) {
	base := grade("f1", "S1", 2, 6.5)
	base.Course, base.Section = "", ""

	placements := []struct{ course, section string }{
		{"c1", "sec-1a"},
		{"c1", "1a"},
		{"c1ro", "sec-1a"},
	}
	var facts []models.FactRecord
	keys := make(map[string]bool)
	for i, p := range placements {
		f := base
		f.ID = fmt.Sprintf("f%d", i)
		f.CourseID, f.SectionID = p.course, p.section
		facts = append(facts, f)
		keys[NaturalKey(f)] = true
	}
	assert.Len(t, keys, len(placements))

	merged, stats := Merge(nil, facts)
	assert.Len(t, merged, len(placements))
	assert.Equal(t, Stats{Inserted: 3}, stats)

	// an id that happens to read like a label stays apart from that label
	labelled := base
	labelled.Course, labelled.Section = "1a", "a"
	byID := base
	byID.CourseID, byID.SectionID = "1a", "a"
	assert.NotEqual(t, NaturalKey(labelled), NaturalKey(byID))
}

func TestNaturalKeyUsesRecordLocation(t *testing.T) {
	santiago := time.FixedZone("CLT", -4*60*60)
	f := grade("f1", "S1", 2, 6.5)
	f.Date = time.Date(2024, 4, 2, 22, 0, 0, 0, santiago)

	assert.Equal(t, "s1|1basica|a|matematica|grade|20240402", NaturalKey(f))
}

func TestMergeReplacesInPlace(t *testing.T) {
	existing := []models.FactRecord{grade("f1", "S1", 2, 5.0), grade("f2", "S2", 2, 6.0)}
	update := grade("new-id", "S1", 2, 7.0)
	update.CreatedAt = later

	merged, stats := Merge(existing, []models.FactRecord{update})
	require.Len(t, merged, 2)
	assert.Equal(t, Stats{Updated: 1}, stats)

	assert.Equal(t, "f1", merged[0].ID)
	assert.Equal(t, created, merged[0].CreatedAt)
	assert.Equal(t, later, merged[0].UpdatedAt)
	assert.Equal(t, 7.0, *merged[0].Score)
	assert.Equal(t, existing[1], merged[1])

	// inputs are untouched
	assert.Equal(t, 5.0, *existing[0].Score)
}

func TestMergeHundredPlusFifteen(t *testing.T) {
	var existing []models.FactRecord
	for i := 0; i < 100; i++ {
		existing = append(existing, grade(fmt.Sprintf("f%d", i), fmt.Sprintf("S%d", i), 2, 5.0))
	}

	var incoming []models.FactRecord
	for i := 0; i < 10; i++ {
		incoming = append(incoming, grade(fmt.Sprintf("n%d", i), fmt.Sprintf("S%d", i), 2, 6.0))
	}
	for i := 100; i < 105; i++ {
		incoming = append(incoming, grade(fmt.Sprintf("n%d", i), fmt.Sprintf("S%d", i), 2, 6.0))
	}

	merged, stats := Merge(existing, incoming)
	assert.Len(t, merged, 105)
	assert.Equal(t, 5, stats.Inserted)
	assert.Equal(t, 10, stats.Updated)

	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("f%d", i), merged[i].ID)
		assert.Equal(t, 6.0, *merged[i].Score)
	}
	assert.Equal(t, "n100", merged[100].ID)
	assert.Equal(t, "n104", merged[104].ID)
}

func TestMergeIdempotent(t *testing.T) {
	existing := []models.FactRecord{grade("f1", "S1", 2, 5.0), grade("f2", "S2", 3, 6.0)}
	incoming := []models.FactRecord{grade("n1", "S1", 2, 7.0), grade("n3", "S3", 4, 4.0)}

	once, _ := Merge(existing, incoming)
	twice, stats := Merge(once, incoming)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second merge changed the collection (-once +twice):\n%s", diff)
	}
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 2, stats.Updated)
}

func TestMergeTimestampOnlyDifference(t *testing.T) {
	morning := grade("n1", "S1", 2, 6.0)
	morning.Date = morning.Date.Add(8 * time.Hour)
	evening := grade("n2", "S1", 2, 6.5)
	evening.Date = evening.Date.Add(18 * time.Hour)

	merged, stats := Merge(nil, []models.FactRecord{morning, evening})
	require.Len(t, merged, 1)
	assert.Equal(t, Stats{Inserted: 1, Updated: 1}, stats)
	assert.Equal(t, "n1", merged[0].ID)
	assert.Equal(t, 6.5, *merged[0].Score)
}

func TestMergeSameBatchLastWins(t *testing.T) {
	a := grade("n1", "S1", 2, 4.0)
	b := grade("n2", "S1", 2, 5.5)
	c := grade("n3", "S1", 2, 6.8)

	merged, stats := Merge([]models.FactRecord{grade("f1", "S1", 2, 3.0)}, []models.FactRecord{a, b, c})
	require.Len(t, merged, 1)
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, "f1", merged[0].ID)
	assert.Equal(t, 6.8, *merged[0].Score)
}

func TestMergeDifferentTypesDoNotCollide(t *testing.T) {
	g := grade("n1", "S1", 2, 6.0)
	a := g
	a.ID = "n2"
	a.Type = models.RecordTypeAttendance
	a.Score = nil
	a.Status = models.AttendancePresent

	merged, stats := Merge(nil, []models.FactRecord{g, a})
	assert.Len(t, merged, 2)
	assert.Equal(t, 2, stats.Inserted)
}

func TestMergeRejectsIncomplete(t *testing.T) {
	noStudent := grade("n1", "", 2, 6.0)
	noSubject := grade("n2", "S1", 2, 6.0)
	noSubject.Subject = " "
	noDate := grade("n3", "S1", 2, 6.0)
	noDate.Date = time.Time{}
	ok := grade("n4", "S1", 3, 6.0)

	merged, stats := Merge(nil, []models.FactRecord{noStudent, noSubject, noDate, ok})
	require.Len(t, merged, 1)
	assert.Equal(t, "n4", merged[0].ID)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, []Rejection{
		{Index: 0, ID: "n1", Reason: "missing student id"},
		{Index: 1, ID: "n2", Reason: "missing subject"},
		{Index: 2, ID: "n3", Reason: "missing date"},
	}, stats.Rejected)
}

func TestMergeCollapsesExistingDuplicates(t *testing.T) {
	first := grade("f1", "S1", 2, 4.0)
	dup := grade("f9", "S1", 2, 6.0)
	dup.UpdatedAt = later

	merged, stats := Merge([]models.FactRecord{first, grade("f2", "S2", 2, 5.0), dup}, nil)
	require.Len(t, merged, 2)
	assert.Equal(t, 1, stats.Collapsed)
	assert.Equal(t, "f1", merged[0].ID)
	assert.Equal(t, 6.0, *merged[0].Score)
	assert.Equal(t, "f2", merged[1].ID)
}

func TestCollapseKeepsNewestPayload(t *testing.T) {
	newest := grade("f1", "S1", 2, 7.0)
	newest.UpdatedAt = later
	stale := grade("f2", "S1", 2, 3.0)

	out, removed := Collapse([]models.FactRecord{newest, stale})
	require.Len(t, out, 1)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "f1", out[0].ID)
	assert.Equal(t, 7.0, *out[0].Score)
}

func TestPrune(t *testing.T) {
	old := grade("f1", "S1", 2, 5.0)
	old.Date = old.Date.AddDate(-1, 0, 0)
	other := grade("f2", "S2", 2, 5.0)
	other.CourseID = "c2"
	current := grade("f3", "S3", 2, 5.0)
	collection := []models.FactRecord{old, other, current}

	out, removed, err := Prune(collection, Scope{Year: 2023})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []models.FactRecord{other, current}, out)

	out, removed, err = Prune(collection, Scope{Year: 2024, CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []models.FactRecord{old, other}, out)

	_, _, err = Prune(collection, Scope{})
	assert.ErrorIs(t, err, ErrEmptyScope)
}
