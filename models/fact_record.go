package models

import "time"

// Record types
const (
	RecordTypeGrade      = "grade"
	RecordTypeAttendance = "attendance"
)

// Attendance statuses
const (
	AttendancePresent   = "present"
	AttendanceAbsent    = "absent"
	AttendanceLate      = "late"
	AttendanceJustified = "justified"
)

// IsAttendanceStatus reports whether s is one of the known attendance codes.
func IsAttendanceStatus(s string) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceJustified:
		return true
	}
	return false
}

// FactRecord represents a persisted grade or attendance entry.
// Course, Section and Subject hold the labels the natural key is built from;
// CourseID and SectionID hold the resolved catalog ids.
type FactRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SectionID string    `db:"section_id" json:"section_id"`
	Course    string    `db:"course" json:"course"`
	Section   string    `db:"section" json:"section"`
	Subject   string    `db:"subject" json:"subject"`
	Type      string    `db:"record_type" json:"type"`
	Date      time.Time `db:"record_date" json:"date"`
	Score     *float64  `db:"score" json:"score,omitempty"`
	Status    string    `db:"status" json:"status,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Year returns the school year the record belongs to.
func (f FactRecord) Year() int {
	return f.Date.Year()
}
