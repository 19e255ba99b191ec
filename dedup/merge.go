package dedup

import (
	"errors"
	"strings"

	"github.com/nonsonwune/colegio_db/models"
)

// ErrEmptyScope guards against a prune that would delete everything.
var ErrEmptyScope = errors.New("prune scope needs a year or a course")

// Rejection records an incoming fact that could not be merged.
type Rejection struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Stats summarizes a merge. Every incoming fact is counted exactly once, as
// inserted, updated or rejected.
type Stats struct {
	Inserted  int         `json:"inserted"`
	Updated   int         `json:"updated"`
	Collapsed int         `json:"collapsed"`
	Rejected  []Rejection `json:"rejected,omitempty"`
}

// Merge folds incoming facts into an existing collection.
//
// A fact whose natural key is already present replaces that entry in place,
// keeping its position, surrogate ID and CreatedAt. Other facts are appended
// in their incoming order. When the same key appears twice in one batch the
// later fact wins. Duplicates already present in existing are collapsed
// first. Merge does not modify its arguments and is idempotent:
// Merge(Merge(c, f), f) yields the same collection as Merge(c, f).
func Merge(existing, incoming []models.FactRecord) ([]models.FactRecord, Stats) {
	merged, positions, collapsed := collapse(existing)
	stats := Stats{Collapsed: collapsed}

	for i, f := range incoming {
		if reason := invalid(f); reason != "" {
			stats.Rejected = append(stats.Rejected, Rejection{Index: i, ID: f.ID, Reason: reason})
			continue
		}

		f = stamp(f)
		key := NaturalKey(f)
		if pos, ok := positions[key]; ok {
			merged[pos] = supersede(merged[pos], f)
			stats.Updated++
			continue
		}

		positions[key] = len(merged)
		merged = append(merged, f)
		stats.Inserted++
	}

	return merged, stats
}

// Collapse enforces the one-record-per-key invariant on a collection written
// before the invariant existed. Each key keeps the position of its first
// occurrence and the payload of its most recently updated occurrence.
func Collapse(collection []models.FactRecord) ([]models.FactRecord, int) {
	out, _, removed := collapse(collection)
	return out, removed
}

func collapse(collection []models.FactRecord) ([]models.FactRecord, map[string]int, int) {
	out := make([]models.FactRecord, 0, len(collection))
	positions := make(map[string]int, len(collection))
	removed := 0

	for _, f := range collection {
		key := NaturalKey(f)
		pos, ok := positions[key]
		if !ok {
			positions[key] = len(out)
			out = append(out, f)
			continue
		}
		removed++
		if !stamp(out[pos]).UpdatedAt.After(stamp(f).UpdatedAt) {
			out[pos] = supersede(out[pos], f)
		}
	}

	return out, positions, removed
}

// supersede returns next carrying the identity of prev.
func supersede(prev, next models.FactRecord) models.FactRecord {
	next = stamp(next)
	if prev.ID != "" {
		next.ID = prev.ID
	}
	if !prev.CreatedAt.IsZero() {
		next.CreatedAt = prev.CreatedAt
	}
	return next
}

func stamp(f models.FactRecord) models.FactRecord {
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}
	return f
}

func invalid(f models.FactRecord) string {
	switch {
	case strings.TrimSpace(f.StudentID) == "":
		return "missing student id"
	case strings.TrimSpace(f.Subject) == "":
		return "missing subject"
	case strings.TrimSpace(f.Type) == "":
		return "missing record type"
	case f.Date.IsZero():
		return "missing date"
	}
	return ""
}

// Scope selects the records removed by a bulk delete.
type Scope struct {
	Year     int    `json:"year,omitempty"`
	CourseID string `json:"courseId,omitempty"`
}

// IsZero reports whether the scope selects nothing in particular.
func (s Scope) IsZero() bool { return s.Year == 0 && s.CourseID == "" }

// Matches reports whether f falls inside the scope.
func (s Scope) Matches(f models.FactRecord) bool {
	if s.Year != 0 && f.Year() != s.Year {
		return false
	}
	if s.CourseID != "" && f.CourseID != s.CourseID {
		return false
	}
	return true
}

// Prune removes every record inside scope and returns the rest in order.
func Prune(collection []models.FactRecord, scope Scope) ([]models.FactRecord, int, error) {
	if scope.IsZero() {
		return nil, 0, ErrEmptyScope
	}

	out := make([]models.FactRecord, 0, len(collection))
	for _, f := range collection {
		if scope.Matches(f) {
			continue
		}
		out = append(out, f)
	}
	return out, len(collection) - len(out), nil
}
