// Package normalize turns free-text identity fields (course and section
// labels, subject names, role labels, person names, RUTs) into comparable
// tokens.
//
// Every function here is pure, total and idempotent: unrecognized input
// degrades to a stripped lowercase string instead of an error, and
// normalizing a token a second time returns it unchanged.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxPasses bounds the rewrite loops. Every rewrite either shortens the
// string or maps a word onto a fixed canonical form, so two or three passes
// are enough in practice.
const maxPasses = 8

// Canonical role tokens
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

var roleSynonyms = map[string]string{
	"student":        RoleStudent,
	"students":       RoleStudent,
	"estudiante":     RoleStudent,
	"estudiantes":    RoleStudent,
	"alumno":         RoleStudent,
	"alumna":         RoleStudent,
	"teacher":        RoleTeacher,
	"teachers":       RoleTeacher,
	"profesor":       RoleTeacher,
	"profesora":      RoleTeacher,
	"profesores":     RoleTeacher,
	"docente":        RoleTeacher,
	"docentes":       RoleTeacher,
	"admin":          RoleAdmin,
	"administrator":  RoleAdmin,
	"administrador":  RoleAdmin,
	"administradora": RoleAdmin,
}

var recordTypeSynonyms = map[string]string{
	"grade":          "grade",
	"grades":         "grade",
	"nota":           "grade",
	"notas":          "grade",
	"calificacion":   "grade",
	"calificaciones": "grade",
	"evaluacion":     "grade",
	"attendance":     "attendance",
	"asistencia":     "attendance",
	"asistencias":    "attendance",
}

// stripDiacritics decomposes s into NFD form and drops the combining marks,
// so "Básico" becomes "Basico".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// fold lowercases, trims and strips diacritics.
func fold(s string) string {
	return stripDiacritics(strings.ToLower(strings.TrimSpace(s)))
}

// isLetter excludes the ordinal indicators º and ª, which unicode
// classifies as letters but which only ever decorate a number here.
func isLetter(r rune) bool {
	return unicode.IsLetter(r) && r != 'º' && r != 'ª'
}

func isAlnum(r rune) bool {
	return isLetter(r) || unicode.IsDigit(r)
}

// words splits s on every non-alphanumeric rune.
func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isAlnum(r) })
}

// Token is the generic identifier token: lowercase, no diacritics, and only
// letters and digits.
func Token(text string) string {
	return strings.Join(words(fold(text)), "")
}

// SubjectToken normalizes a subject name ("Matemáticas" -> "matematicas").
func SubjectToken(text string) string {
	return Token(text)
}

// RecordTypeToken maps the Spanish and English names of a fact type onto
// "grade" or "attendance". Unknown types come back as a plain Token.
func RecordTypeToken(text string) string {
	t := Token(text)
	if canon, ok := recordTypeSynonyms[t]; ok {
		return canon
	}
	return t
}

// RoleToken maps role synonyms onto RoleStudent, RoleTeacher or RoleAdmin.
// Unrecognized roles pass through lowercased and trimmed.
func RoleToken(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	if canon, ok := roleSynonyms[stripDiacritics(t)]; ok {
		return canon
	}
	return t
}

// NameKey normalizes a person's full name for equality matching. Case,
// accents, punctuation and repeated whitespace are ignored; word order is
// kept.
func NameKey(text string) string {
	return strings.Join(words(fold(text)), " ")
}
