package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
)

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
	"02.01.2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

var statusSynonyms = map[string]string{
	"present":     models.AttendancePresent,
	"presente":    models.AttendancePresent,
	"p":           models.AttendancePresent,
	"absent":      models.AttendanceAbsent,
	"ausente":     models.AttendanceAbsent,
	"a":           models.AttendanceAbsent,
	"late":        models.AttendanceLate,
	"atrasado":    models.AttendanceLate,
	"atrasada":    models.AttendanceLate,
	"tarde":       models.AttendanceLate,
	"t":           models.AttendanceLate,
	"justified":   models.AttendanceJustified,
	"justificado": models.AttendanceJustified,
	"justificada": models.AttendanceJustified,
	"j":           models.AttendanceJustified,
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseScore accepts both "6.5" and the Chilean "6,5".
func parseScore(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func statusToken(s string) string {
	folded := normalize.Token(s)
	if status, ok := statusSynonyms[folded]; ok {
		return status
	}
	return folded
}

// toCandidate turns a raw row into a validated candidate. defaultType is
// used when the file has no type column.
func toCandidate(rowNum int, row []string, cols ColumnMap, defaultType string, loc *time.Location) (models.CandidateRecord, error) {
	c := models.CandidateRecord{
		Row:        rowNum,
		RUT:        cols.Get(row, FieldRUT),
		FullName:   cols.Get(row, FieldFullName),
		Role:       cols.Get(row, FieldRole),
		Course:     cols.Get(row, FieldCourse),
		Section:    cols.Get(row, FieldSection),
		CompoundID: cols.Get(row, FieldCompoundID),
		Subject:    cols.Get(row, FieldSubject),
	}

	typ := cols.Get(row, FieldType)
	if typ == "" {
		typ = defaultType
	}
	c.Type = normalize.RecordTypeToken(typ)

	if raw := cols.Get(row, FieldDate); raw != "" {
		date, ok := parseDate(raw, loc)
		if !ok {
			return c, invalidRow(rowNum, FieldDate, raw, "row %d: unrecognized date %q", rowNum, raw)
		}
		c.Date = date
	}

	if raw := cols.Get(row, FieldScore); raw != "" {
		v, err := parseScore(raw)
		if err != nil {
			return c, invalidRow(rowNum, FieldScore, raw, "row %d: invalid score %q", rowNum, raw)
		}
		c.Score = &v
	}

	if raw := cols.Get(row, FieldStatus); raw != "" {
		c.Status = statusToken(raw)
	}

	// rows for staff members never carry student facts
	if c.Role != "" {
		if role := normalize.RoleToken(c.Role); role != normalize.RoleStudent {
			return c, invalidRow(rowNum, FieldRole, c.Role, "row %d: role %q is not a student", rowNum, c.Role)
		}
	}

	if err := c.Validate(); err != nil {
		return c, invalidRow(rowNum, "", "", "%s", err.Error())
	}
	return c, nil
}
