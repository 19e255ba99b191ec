package models

import "strings"

// Section represents one course/section pairing of the sections table.
// CourseID is shared by every section of the same course.
type Section struct {
	ID         string `db:"id" json:"id"`
	CourseID   string `db:"course_id" json:"course_id"`
	CourseName string `db:"course_name" json:"course_name"`
	Label      string `db:"label" json:"label"`
}

// DisplayName returns the human label, e.g. "1° Básico A".
func (s Section) DisplayName() string {
	return strings.TrimSpace(s.CourseName + " " + s.Label)
}
