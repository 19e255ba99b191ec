package matcher

import (
	"errors"

	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
)

var (
	// ErrEmptyRoster means there is nothing to match students against. It is
	// fatal for the whole batch.
	ErrEmptyRoster = errors.New("student roster is empty")

	// ErrEmptyCatalog means there are no course sections to match against.
	ErrEmptyCatalog = errors.New("section catalog is empty")
)

// RosterIndex provides lookup of roster students by normalized RUT and by
// normalized full name. Both maps keep every distinct student for a key so
// two students sharing a RUT or name surface as ambiguity instead of being
// hidden.
type RosterIndex struct {
	byRUT     map[string][]*models.Student
	byName    map[string][]*models.Student
	byID      map[string]*models.Student
	conflicts []string
}

// NewRosterIndex indexes the students of a roster. Rows whose role is not a
// student role (teachers, admins) are skipped. A student id listed more than
// once is indexed once, under the first row; a repeat that disagrees on RUT
// or name is reported by Conflicts and its keys still lead to that student.
func NewRosterIndex(students []models.Student) (*RosterIndex, error) {
	ix := &RosterIndex{
		byRUT:  make(map[string][]*models.Student, len(students)),
		byName: make(map[string][]*models.Student, len(students)),
		byID:   make(map[string]*models.Student, len(students)),
	}

	for i := range students {
		s := students[i]
		if role := normalize.RoleToken(s.Role); role != "" && role != normalize.RoleStudent {
			continue
		}
		if s.ID == "" {
			continue
		}
		rec, seen := ix.byID[s.ID]
		if !seen {
			rec = &s
			ix.byID[s.ID] = rec
		} else if normalize.RUT(s.RUT) != normalize.RUT(rec.RUT) || normalize.NameKey(s.FullName) != normalize.NameKey(rec.FullName) {
			ix.conflicts = append(ix.conflicts, s.ID)
		}
		if rut := normalize.RUT(s.RUT); rut != "" {
			ix.byRUT[rut] = appendStudent(ix.byRUT[rut], rec)
		}
		if name := normalize.NameKey(s.FullName); name != "" {
			ix.byName[name] = appendStudent(ix.byName[name], rec)
		}
	}

	if len(ix.byID) == 0 {
		return nil, ErrEmptyRoster
	}
	return ix, nil
}

func appendStudent(list []*models.Student, s *models.Student) []*models.Student {
	for _, have := range list {
		if have.ID == s.ID {
			return list
		}
	}
	return append(list, s)
}

// Conflicts lists the student ids the roster repeats with a different RUT
// or name.
func (ix *RosterIndex) Conflicts() []string { return ix.conflicts }

// Len returns the number of indexed students.
func (ix *RosterIndex) Len() int { return len(ix.byID) }

// Student returns the roster entry with the given id.
func (ix *RosterIndex) Student(id string) (models.Student, bool) {
	s, ok := ix.byID[id]
	if !ok {
		return models.Student{}, false
	}
	return *s, true
}

// CourseIndex provides lookup of course sections by normalized
// (course, section) pair, by id, and through the legacy id aliases.
type CourseIndex struct {
	byPlacement map[string][]*models.Section
	byID        map[string]*models.Section
	byCourse    map[string][]*models.Section
	aliases     map[string]string
}

// NewCourseIndex indexes the section catalog together with the legacy id
// aliases used by older records.
func NewCourseIndex(sections []models.Section, aliases []models.IDAlias) (*CourseIndex, error) {
	if len(sections) == 0 {
		return nil, ErrEmptyCatalog
	}

	ix := &CourseIndex{
		byPlacement: make(map[string][]*models.Section, len(sections)),
		byID:        make(map[string]*models.Section, len(sections)),
		byCourse:    make(map[string][]*models.Section),
		aliases:     make(map[string]string, len(aliases)),
	}

	owned := append([]models.Section(nil), sections...)
	for i := range owned {
		sec := &owned[i]
		key := normalize.PlacementKey(sec.CourseName, sec.Label)
		ix.byPlacement[key] = append(ix.byPlacement[key], sec)
		if sec.ID != "" {
			ix.byID[sec.ID] = sec
		}
		if sec.CourseID != "" {
			ix.byCourse[sec.CourseID] = append(ix.byCourse[sec.CourseID], sec)
		}
	}

	for _, a := range aliases {
		if a.LegacyID == "" || a.ID == "" {
			continue
		}
		ix.aliases[a.Kind+"|"+a.LegacyID] = a.ID
	}

	return ix, nil
}

// Canonical maps a legacy id of the given kind onto its current id. Ids
// without an alias are returned unchanged.
func (ix *CourseIndex) Canonical(kind, id string) string {
	if mapped, ok := ix.aliases[kind+"|"+id]; ok {
		return mapped
	}
	return id
}

// Section returns the catalog entry with the given id, following aliases.
func (ix *CourseIndex) Section(id string) (models.Section, bool) {
	sec, ok := ix.byID[ix.Canonical(models.AliasSection, id)]
	if !ok {
		return models.Section{}, false
	}
	return *sec, true
}
