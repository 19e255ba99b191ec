// Package matcher resolves the identity fields of imported rows against the
// records of a target system: students by RUT or name, course sections by
// normalized labels or compound ids.
//
// Results are tagged values, never errors, so a batch keeps going after a
// row fails to resolve. Ambiguous results are never auto-resolved.
package matcher

import (
	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
)

// Outcome tags a Resolution.
type Outcome int

const (
	NoMatch Outcome = iota
	Matched
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no_match"
	}
}

// MatchKey names the key a resolution was made through.
type MatchKey string

const (
	ViaRUT        MatchKey = "rut"
	ViaName       MatchKey = "name"
	ViaPlacement  MatchKey = "placement"
	ViaCompoundID MatchKey = "compound_id"
)

// Resolution is the outcome of matching one candidate against a target index.
type Resolution struct {
	Outcome Outcome  `json:"outcome"`
	ID      string   `json:"id,omitempty"`
	Via     MatchKey `json:"via,omitempty"`

	// CourseID is set for course/section resolutions.
	CourseID string `json:"courseId,omitempty"`

	// Candidates lists the target ids of an ambiguous resolution.
	Candidates []string `json:"candidates,omitempty"`

	// PlacementMismatch flags a match whose declared course/section differs
	// from the target's recorded placement. It is a warning, not a failure.
	PlacementMismatch bool `json:"placementMismatch,omitempty"`

	// RUTConflict flags a name match whose roster RUT differs from the RUT
	// the candidate declared. Like PlacementMismatch it never blocks.
	RUTConflict bool `json:"rutConflict,omitempty"`

	// Attempted lists the keys that were tried, for reporting.
	Attempted []string `json:"attempted,omitempty"`
}

// OK reports whether the resolution produced a single target.
func (r Resolution) OK() bool { return r.Outcome == Matched }

// MatchStudent resolves a candidate row to a roster student.
//
// The RUT is authoritative: a RUT hit is returned even when the declared
// course or section disagrees with the roster, with PlacementMismatch set.
// Without a RUT hit the normalized full name is tried; several roster
// students sharing that name make the result Ambiguous. A name match on a
// student recorded under another RUT sets RUTConflict.
func MatchStudent(c models.CandidateRecord, ix *RosterIndex) Resolution {
	var attempted []string

	rut := normalize.RUT(c.RUT)
	if rut != "" {
		attempted = append(attempted, "rut:"+rut)
		switch hits := ix.byRUT[rut]; len(hits) {
		case 0:
		case 1:
			return matchedStudent(hits[0], ViaRUT, c, attempted)
		default:
			return Resolution{Outcome: Ambiguous, Via: ViaRUT, Candidates: studentIDs(hits), Attempted: attempted}
		}
	}

	if name := normalize.NameKey(c.FullName); name != "" {
		attempted = append(attempted, "name:"+name)
		switch hits := ix.byName[name]; len(hits) {
		case 0:
		case 1:
			res := matchedStudent(hits[0], ViaName, c, attempted)
			if known := normalize.RUT(hits[0].RUT); rut != "" && known != "" && known != rut {
				res.RUTConflict = true
			}
			return res
		default:
			return Resolution{Outcome: Ambiguous, Via: ViaName, Candidates: studentIDs(hits), Attempted: attempted}
		}
	}

	return Resolution{Outcome: NoMatch, Attempted: attempted}
}

func matchedStudent(s *models.Student, via MatchKey, c models.CandidateRecord, attempted []string) Resolution {
	return Resolution{
		Outcome:           Matched,
		ID:                s.ID,
		Via:               via,
		PlacementMismatch: placementDiffers(c, s),
		Attempted:         attempted,
	}
}

// placementDiffers compares only the parts the candidate actually declares.
func placementDiffers(c models.CandidateRecord, s *models.Student) bool {
	if c.Course != "" && normalize.CourseToken(c.Course) != normalize.CourseToken(s.CourseName) {
		return true
	}
	if c.Section != "" && normalize.SectionToken(c.Section) != normalize.SectionToken(s.SectionName) {
		return true
	}
	return false
}

func studentIDs(students []*models.Student) []string {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids
}

// MatchCourseSection resolves a course label and section label to the one
// catalog section with the same normalized pair.
func MatchCourseSection(courseLabel, sectionLabel string, ix *CourseIndex) Resolution {
	if normalize.CourseToken(courseLabel) == "" {
		return Resolution{Outcome: NoMatch, Attempted: []string{"placement:"}}
	}

	key := normalize.PlacementKey(courseLabel, sectionLabel)
	attempted := []string{"placement:" + key}

	switch hits := ix.byPlacement[key]; len(hits) {
	case 0:
		return Resolution{Outcome: NoMatch, Attempted: attempted}
	case 1:
		return Resolution{Outcome: Matched, ID: hits[0].ID, CourseID: hits[0].CourseID, Via: ViaPlacement, Attempted: attempted}
	default:
		return Resolution{Outcome: Ambiguous, Via: ViaPlacement, Candidates: sectionIDs(hits), Attempted: attempted}
	}
}

func sectionIDs(sections []*models.Section) []string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}
	return ids
}
