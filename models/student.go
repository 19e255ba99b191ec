package models

// Student represents a row of the students roster
type Student struct {
	ID          string `db:"id" json:"id"`
	RUT         string `db:"rut" json:"rut"`
	FullName    string `db:"full_name" json:"full_name"`
	CourseName  string `db:"course_name" json:"course_name"`
	SectionName string `db:"section_name" json:"section_name"`
	Role        string `db:"role" json:"role,omitempty"`
}
