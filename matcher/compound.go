package matcher

import (
	"strings"

	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
)

// DefaultSeparator joins the course and section halves of a compound id.
const DefaultSeparator = "-"

// CompoundID is a course id and a section id carried as one string.
type CompoundID struct {
	CourseID  string
	SectionID string
}

// ParseCompoundID splits id at the LAST occurrence of sep. Course ids may
// contain the separator themselves ("course-with-dash-B"), section ids never
// do. It returns false when the separator is missing or either half is
// empty.
func ParseCompoundID(id, sep string) (CompoundID, bool) {
	if sep == "" {
		sep = DefaultSeparator
	}
	id = strings.TrimSpace(id)

	i := strings.LastIndex(id, sep)
	if i <= 0 || i+len(sep) >= len(id) {
		return CompoundID{}, false
	}

	return CompoundID{
		CourseID:  id[:i],
		SectionID: id[i+len(sep):],
	}, true
}

// ResolveCompoundID resolves a compound id to a catalog section. Legacy
// numeric ids are mapped through the alias table first. The section half may
// be a section id or a section label within the course. A malformed id
// resolves to NoMatch.
func ResolveCompoundID(id, sep string, ix *CourseIndex) Resolution {
	parts, ok := ParseCompoundID(id, sep)
	if !ok {
		return Resolution{Outcome: NoMatch, Attempted: []string{"compound:malformed:" + id}}
	}

	courseID := ix.Canonical(models.AliasCourse, parts.CourseID)
	sectionID := ix.Canonical(models.AliasSection, parts.SectionID)
	attempted := []string{"compound:" + courseID + "/" + sectionID}

	if sec, ok := ix.byID[sectionID]; ok {
		if sec.CourseID != courseID {
			return Resolution{Outcome: NoMatch, Attempted: append(attempted, "compound:course_mismatch:"+sec.CourseID)}
		}
		return Resolution{Outcome: Matched, ID: sec.ID, CourseID: sec.CourseID, Via: ViaCompoundID, Attempted: attempted}
	}

	label := normalize.SectionToken(sectionID)
	var hits []*models.Section
	for _, sec := range ix.byCourse[courseID] {
		if label != "" && normalize.SectionToken(sec.Label) == label {
			hits = append(hits, sec)
		}
	}

	switch len(hits) {
	case 0:
		return Resolution{Outcome: NoMatch, Attempted: attempted}
	case 1:
		return Resolution{Outcome: Matched, ID: hits[0].ID, CourseID: hits[0].CourseID, Via: ViaCompoundID, Attempted: attempted}
	default:
		return Resolution{Outcome: Ambiguous, Via: ViaCompoundID, Candidates: sectionIDs(hits), Attempted: attempted}
	}
}
