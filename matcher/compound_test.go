package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCompoundID(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		sep    string
		want   CompoundID
		wantOK bool
	}{
		{
			name:   "splits at last separator",
			id:     "course-with-dash-sectionId",
			want:   CompoundID{CourseID: "course-with-dash", SectionID: "sectionId"},
			wantOK: true,
		},
		{
			name:   "uuid course id",
			id:     "3f2b9c1e-8d4a-4e57-9a61-0c2d7e5b1f00-A",
			want:   CompoundID{CourseID: "3f2b9c1e-8d4a-4e57-9a61-0c2d7e5b1f00", SectionID: "A"},
			wantOK: true,
		},
		{
			name:   "custom separator",
			id:     "c1__b__2",
			sep:    "__",
			want:   CompoundID{CourseID: "c1__b", SectionID: "2"},
			wantOK: true,
		},
		{name: "no separator", id: "course", wantOK: false},
		{name: "empty section", id: "course-", wantOK: false},
		{name: "empty course", id: "-A", wantOK: false},
		{name: "empty", id: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCompoundID(tt.id, tt.sep)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCompoundID(t *testing.T) {
	ix := testCatalog(t)

	res := ResolveCompoundID("course-with-dash-sec-4mc", "-", ix)
	// The last dash splits "sec-4mc" apart, so the section half is "4mc".
	assert.Equal(t, NoMatch, res.Outcome)

	res = ResolveCompoundID("course-with-dash-C", "-", ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "sec-4mc", res.ID)
	assert.Equal(t, "course-with-dash", res.CourseID)
	assert.Equal(t, ViaCompoundID, res.Via)

	res = ResolveCompoundID("c1:sec-1a", ":", ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "sec-1a", res.ID)
}

func TestResolveCompoundIDLegacyAliases(t *testing.T) {
	ix := testCatalog(t)

	res := ResolveCompoundID("101-7", "-", ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "sec-1b", res.ID)

	res = ResolveCompoundID("101-B", "-", ix)
	assert.Equal(t, Matched, res.Outcome)
	assert.Equal(t, "sec-1b", res.ID)
}

func TestResolveCompoundIDFailures(t *testing.T) {
	ix := testCatalog(t)

	res := ResolveCompoundID("nodash", "-", ix)
	assert.Equal(t, NoMatch, res.Outcome)
	assert.Equal(t, []string{"compound:malformed:nodash"}, res.Attempted)

	// Section exists but belongs to another course.
	res = ResolveCompoundID("c9:sec-1a", ":", ix)
	assert.Equal(t, NoMatch, res.Outcome)

	res = ResolveCompoundID("c1-Z", "-", ix)
	assert.Equal(t, NoMatch, res.Outcome)
}
