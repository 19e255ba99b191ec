package models

import (
	"fmt"
	"strings"
	"time"
)

// CandidateRecord is one row of an import batch after the transport layer has
// split it into fields. It is created per batch, never mutated, and dropped
// once it has been resolved against the roster.
type CandidateRecord struct {
	Row int `json:"row"`

	// Student identity
	RUT      string `json:"rut,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`

	// Placement, either as labels or as a single compound id
	Course     string `json:"course,omitempty"`
	Section    string `json:"section,omitempty"`
	CompoundID string `json:"compound_id,omitempty"`

	// Fact payload
	Subject string    `json:"subject,omitempty"`
	Type    string    `json:"type,omitempty"`
	Date    time.Time `json:"date"`
	Score   *float64  `json:"score,omitempty"`
	Status  string    `json:"status,omitempty"`
}

// HasPlacement reports whether the row declares a course or a section.
func (c CandidateRecord) HasPlacement() bool {
	return strings.TrimSpace(c.Course) != "" || strings.TrimSpace(c.Section) != ""
}

// Validate checks the boundary rules once so later stages can read the
// fields without re-checking them.
func (c CandidateRecord) Validate() error {
	if strings.TrimSpace(c.RUT) == "" && strings.TrimSpace(c.FullName) == "" {
		return fmt.Errorf("row %d: neither rut nor name present", c.Row)
	}
	if strings.TrimSpace(c.CompoundID) == "" && strings.TrimSpace(c.Course) == "" {
		return fmt.Errorf("row %d: no course or compound id", c.Row)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("row %d: missing subject", c.Row)
	}
	if c.Date.IsZero() {
		return fmt.Errorf("row %d: missing date", c.Row)
	}
	switch c.Type {
	case RecordTypeGrade:
		if c.Score == nil {
			return fmt.Errorf("row %d: grade without score", c.Row)
		}
	case RecordTypeAttendance:
		if !IsAttendanceStatus(c.Status) {
			return fmt.Errorf("row %d: invalid attendance status %q", c.Row, c.Status)
		}
	default:
		return fmt.Errorf("row %d: unknown record type %q", c.Row, c.Type)
	}
	return nil
}
