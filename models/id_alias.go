package models

// Alias kinds
const (
	AliasCourse  = "course"
	AliasSection = "section"
	AliasStudent = "student"
)

// IDAlias maps an identifier from the legacy numeric scheme onto the
// current UUID of the same entity. It backs the id_aliases table.
type IDAlias struct {
	Kind     string `db:"kind" json:"kind"`
	LegacyID string `db:"legacy_id" json:"legacy_id"`
	ID       string `db:"id" json:"id"`
}
