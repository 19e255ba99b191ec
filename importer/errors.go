package importer

import (
	"fmt"
	"time"
)

// Failure codes written to the failed-records file.
const (
	CodeNoMatchStudent   = "NO_MATCH_STUDENT"
	CodeAmbiguousStudent = "AMBIGUOUS_STUDENT"
	CodeNoMatchSection   = "NO_MATCH_SECTION"
	CodeAmbiguousSection = "AMBIGUOUS_SECTION"
	CodeInvalidRow       = "INVALID_ROW"
)

type ImportError struct {
	Code      string
	Message   string
	Timestamp time.Time
	Context   map[string]string
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func invalidRow(row int, field, value, format string, args ...interface{}) *ImportError {
	return &ImportError{
		Code:      CodeInvalidRow,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
		Context: map[string]string{
			"row":   fmt.Sprint(row),
			"field": field,
			"value": value,
		},
	}
}
