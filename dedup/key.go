// Package dedup keeps at most one fact record per natural key across
// repeated imports and syncs.
package dedup

import (
	"strings"

	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
)

// keySep never appears inside a component: every component is normalized
// to letters and digits first.
const keySep = "|"

// idPrefix marks a course or section component taken from a catalog id, so
// an id can never equal a label token.
const idPrefix = "id:"

// dayLayout keys records by calendar day, not by timestamp.
const dayLayout = "20060102"

// NaturalKey returns the composite key of a fact: student, course, section,
// subject, record type and day. Course and section use their labels when
// present and fall back to the catalog ids.
func NaturalKey(f models.FactRecord) string {
	return strings.Join([]string{
		normalize.Token(f.StudentID),
		component(f.Course, f.CourseID, normalize.CourseToken),
		component(f.Section, f.SectionID, normalize.SectionToken),
		normalize.SubjectToken(f.Subject),
		normalize.RecordTypeToken(f.Type),
		f.Date.Format(dayLayout),
	}, keySep)
}

// component tokenizes a label with token. Ids are opaque: they only lose
// case and punctuation.
func component(label, id string, token func(string) string) string {
	if strings.TrimSpace(label) != "" {
		return token(label)
	}
	if id = normalize.Token(id); id != "" {
		return idPrefix + id
	}
	return ""
}
