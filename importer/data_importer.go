package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nonsonwune/colegio_db/dedup"
	"github.com/nonsonwune/colegio_db/matcher"
	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/normalize"
	"github.com/nonsonwune/colegio_db/store"
)

// Constants for configuration
const (
	DefaultBatchSize   = 1000
	DefaultWorkerCount = 4
	DefaultFailedDir   = "failed_imports"
)

// ImportConfig holds the configuration for data import
type ImportConfig struct {
	SourceFile      string
	Separator       string // compound id separator
	BatchSize       int    // rows per worker task
	WorkerCount     int
	ValidateOnly    bool // resolve and report, never write facts
	FailedDir       string
	ColumnOverrides map[string]string
	DefaultType     string // record type for files without a type column
	Location        *time.Location
	Comma           rune // 0 detects the delimiter from the header line
}

// FailedImport is a row that could not be turned into a fact.
type FailedImport struct {
	Row        int       `json:"row"`
	RUT        string    `json:"rut,omitempty"`
	FullName   string    `json:"fullName,omitempty"`
	Course     string    `json:"course,omitempty"`
	Section    string    `json:"section,omitempty"`
	CompoundID string    `json:"compoundId,omitempty"`
	ErrorCode  string    `json:"errorCode"`
	FailReason string    `json:"failReason"`
	Candidates []string  `json:"candidates,omitempty"`
	Attempted  []string  `json:"attempted,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	SourceFile string    `json:"sourceFile,omitempty"`
	RowData    []string  `json:"-"`
}

// ReasonCount is one bar of the failure histogram.
type ReasonCount struct {
	Code  string
	Count int
}

// ImportSummary reports the outcome of an import or an analysis.
type ImportSummary struct {
	SourceFile          string
	TotalRows           int
	Resolved            int
	PlacementMismatches int
	Failed              []FailedImport
	Columns             []ColumnMatch
	Stats               dedup.Stats
	FailedFile          string
	ValidateOnly        bool
}

// Reasons returns the failure histogram, most frequent first.
func (s *ImportSummary) Reasons() []ReasonCount {
	counts := make(map[string]int)
	for _, f := range s.Failed {
		counts[f.ErrorCode]++
	}

	reasons := make([]ReasonCount, 0, len(counts))
	for code, count := range counts {
		reasons = append(reasons, ReasonCount{Code: code, Count: count})
	}
	sort.Slice(reasons, func(i, j int) bool {
		if reasons[i].Count != reasons[j].Count {
			return reasons[i].Count > reasons[j].Count
		}
		return reasons[i].Code < reasons[j].Code
	})
	return reasons
}

// DataImporter resolves delimited grade and attendance exports against the
// roster and merges the resulting facts into the fact store.
type DataImporter struct {
	roster store.RosterStore
	facts  store.FactStore
	config ImportConfig
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewDataImporter(roster store.RosterStore, facts store.FactStore, config ImportConfig, logger *zap.Logger) *DataImporter {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultWorkerCount
	}
	if config.Separator == "" {
		config.Separator = matcher.DefaultSeparator
	}
	if config.FailedDir == "" {
		config.FailedDir = DefaultFailedDir
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataImporter{
		roster: roster,
		facts:  facts,
		config: config,
		logger: logger.Named("importer"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ImportData resolves every row of r, merges the resolved facts into the
// fact store and writes unresolved rows to the failed-records file. Only
// batch-level problems are returned as errors: an empty roster or catalog,
// unreadable input, missing columns, or a failed write.
func (d *DataImporter) ImportData(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	summary, headers, facts, err := d.resolve(ctx, r)
	if err != nil {
		return nil, err
	}

	if !d.config.ValidateOnly && len(facts) > 0 {
		stats, err := store.Sync(ctx, d.facts, facts)
		if err != nil {
			return nil, fmt.Errorf("error syncing facts: %w", err)
		}
		summary.Stats = stats
		for _, rej := range stats.Rejected {
			d.logger.Warn("fact rejected by merge", zap.Int("index", rej.Index), zap.String("reason", rej.Reason))
		}
	}

	if len(summary.Failed) > 0 {
		path, err := d.SaveFailedRecords(headers, summary.Failed)
		if err != nil {
			return summary, err
		}
		summary.FailedFile = path
	}

	d.logSummary(summary)
	return summary, nil
}

// Analyze is a dry run: it resolves every row and reports the failures
// without writing anything.
func (d *DataImporter) Analyze(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	summary, _, _, err := d.resolve(ctx, r)
	if err != nil {
		return nil, err
	}
	summary.ValidateOnly = true
	return summary, nil
}

type rowResult struct {
	fact     *models.FactRecord
	failed   *FailedImport
	mismatch bool
}

func (d *DataImporter) resolve(ctx context.Context, r io.Reader) (*ImportSummary, []string, []models.FactRecord, error) {
	students, courses, err := LoadIndexes(ctx, d.roster)
	if err != nil {
		return nil, nil, nil, err
	}
	d.logger.Debug("roster loaded", zap.Int("students", students.Len()))
	if ids := students.Conflicts(); len(ids) > 0 {
		d.logger.Warn("roster repeats student ids with different rut or name", zap.Strings("ids", ids))
	}

	headers, rows, err := d.readRows(r)
	if err != nil {
		return nil, nil, nil, err
	}

	cols, matches, err := MapHeaders(headers, d.config.ColumnOverrides)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("header validation failed: %w", err)
	}
	for _, m := range matches {
		if m.Confidence < 1 {
			d.logger.Info("column mapped by similarity",
				zap.String("field", m.Field),
				zap.String("header", m.Header),
				zap.Float64("confidence", m.Confidence))
		}
	}
	if !cols.Has(FieldType) && d.config.DefaultType == "" {
		return nil, nil, nil, fmt.Errorf("header validation failed: %w: %s (or a default record type)", ErrMissingColumns, FieldType)
	}

	results := make([]rowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.WorkerCount)

	for start := 0; start < len(rows); start += d.config.BatchSize {
		start, end := start, min(start+d.config.BatchSize, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				// header is line 1
				results[i] = d.resolveRow(i+2, rows[i], cols, students, courses)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	summary := &ImportSummary{
		SourceFile:   d.config.SourceFile,
		TotalRows:    len(rows),
		Columns:      matches,
		ValidateOnly: d.config.ValidateOnly,
	}
	var facts []models.FactRecord
	for _, res := range results {
		if res.failed != nil {
			summary.Failed = append(summary.Failed, *res.failed)
			continue
		}
		summary.Resolved++
		if res.mismatch {
			summary.PlacementMismatches++
		}
		facts = append(facts, *res.fact)
	}
	return summary, headers, facts, nil
}

// LoadIndexes reads the roster, catalog and alias table concurrently and
// indexes them. An empty roster or catalog is fatal for the whole batch.
func LoadIndexes(ctx context.Context, roster store.RosterStore) (*matcher.RosterIndex, *matcher.CourseIndex, error) {
	var (
		students []models.Student
		sections []models.Section
		aliases  []models.IDAlias
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = roster.Students(gctx)
		return err
	})
	g.Go(func() (err error) {
		sections, err = roster.Sections(gctx)
		return err
	})
	g.Go(func() (err error) {
		aliases, err = roster.Aliases(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("error loading roster: %w", err)
	}

	rosterIx, err := matcher.NewRosterIndex(students)
	if err != nil {
		return nil, nil, err
	}
	courseIx, err := matcher.NewCourseIndex(sections, aliases)
	if err != nil {
		return nil, nil, err
	}
	return rosterIx, courseIx, nil
}

func (d *DataImporter) readRows(r io.Reader) ([]string, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading input: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = d.config.Comma
	if reader.Comma == 0 {
		reader.Comma = detectComma(data)
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("error reading headers: empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error reading headers: %w", err)
	}
	headers[0] = strings.TrimPrefix(headers[0], "\ufeff")

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading records: %w", err)
	}

	rows := records[:0]
	for _, record := range records {
		if !blank(record) {
			rows = append(rows, record)
		}
	}
	return headers, rows, nil
}

// detectComma picks the most frequent of comma, semicolon and tab on the
// header line. Spreadsheet exports with a Spanish locale use semicolons.
func detectComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func (d *DataImporter) resolveRow(rowNum int, row []string, cols ColumnMap, students *matcher.RosterIndex, courses *matcher.CourseIndex) rowResult {
	c, err := toCandidate(rowNum, row, cols, d.config.DefaultType, d.config.Location)
	if err != nil {
		var ie *ImportError
		if errors.As(err, &ie) {
			return rowResult{failed: d.failure(rowNum, row, cols, ie.Code, ie.Message, matcher.Resolution{})}
		}
		return rowResult{failed: d.failure(rowNum, row, cols, CodeInvalidRow, err.Error(), matcher.Resolution{})}
	}

	if c.RUT != "" && !normalize.ValidRUT(c.RUT) {
		d.logger.Warn("rut check digit does not verify", zap.Int("row", rowNum), zap.String("rut", c.RUT))
	}

	who := matcher.MatchStudent(c, students)
	switch who.Outcome {
	case matcher.NoMatch:
		return rowResult{failed: d.failure(rowNum, row, cols, CodeNoMatchStudent, "no roster student matches the row", who)}
	case matcher.Ambiguous:
		return rowResult{failed: d.failure(rowNum, row, cols, CodeAmbiguousStudent,
			fmt.Sprintf("%d roster students match by %s", len(who.Candidates), who.Via), who)}
	}
	student, _ := students.Student(who.ID)
	if who.RUTConflict {
		d.logger.Warn("name match recorded under another rut",
			zap.Int("row", rowNum),
			zap.String("student_id", student.ID),
			zap.String("declared", c.RUT),
			zap.String("roster", student.RUT))
	}

	where := d.resolvePlacement(c, student, courses)
	switch where.Outcome {
	case matcher.NoMatch:
		return rowResult{failed: d.failure(rowNum, row, cols, CodeNoMatchSection, "no catalog section matches the row", where)}
	case matcher.Ambiguous:
		return rowResult{failed: d.failure(rowNum, row, cols, CodeAmbiguousSection,
			fmt.Sprintf("%d catalog sections match", len(where.Candidates)), where)}
	}
	section, _ := courses.Section(where.ID)

	mismatch := who.PlacementMismatch
	if where.Via == matcher.ViaCompoundID {
		mismatch = mismatch || !normalize.SamePlacement(section.CourseName, section.Label, student.CourseName, student.SectionName)
	}
	if mismatch {
		d.logger.Warn("declared placement differs from roster",
			zap.Int("row", rowNum),
			zap.String("student_id", student.ID),
			zap.String("declared", strings.TrimSpace(c.Course+" "+c.Section+" "+c.CompoundID)),
			zap.String("roster", strings.TrimSpace(student.CourseName+" "+student.SectionName)))
	}

	now := d.now()
	fact := models.FactRecord{
		ID:        d.newID(),
		StudentID: student.ID,
		CourseID:  section.CourseID,
		SectionID: section.ID,
		Course:    section.CourseName,
		Section:   section.Label,
		Subject:   c.Subject,
		Type:      c.Type,
		Date:      c.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch c.Type {
	case models.RecordTypeGrade:
		fact.Score = c.Score
	case models.RecordTypeAttendance:
		fact.Status = c.Status
	}
	return rowResult{fact: &fact, mismatch: mismatch}
}

// resolvePlacement prefers the compound id. A row that names the student's
// own course but no section falls back to the roster section.
func (d *DataImporter) resolvePlacement(c models.CandidateRecord, student models.Student, courses *matcher.CourseIndex) matcher.Resolution {
	if c.CompoundID != "" {
		return matcher.ResolveCompoundID(c.CompoundID, d.config.Separator, courses)
	}
	section := c.Section
	if section == "" && normalize.CourseToken(c.Course) == normalize.CourseToken(student.CourseName) {
		section = student.SectionName
	}
	return matcher.MatchCourseSection(c.Course, section, courses)
}

func (d *DataImporter) failure(rowNum int, row []string, cols ColumnMap, code, reason string, res matcher.Resolution) *FailedImport {
	return &FailedImport{
		Row:        rowNum,
		RUT:        cols.Get(row, FieldRUT),
		FullName:   cols.Get(row, FieldFullName),
		Course:     cols.Get(row, FieldCourse),
		Section:    cols.Get(row, FieldSection),
		CompoundID: cols.Get(row, FieldCompoundID),
		ErrorCode:  code,
		FailReason: reason,
		Candidates: res.Candidates,
		Attempted:  res.Attempted,
		Timestamp:  d.now(),
		SourceFile: d.config.SourceFile,
		RowData:    row,
	}
}

// SaveFailedRecords writes the failed rows, with their original fields and
// the failure, to a timestamped CSV file and returns its path.
func (d *DataImporter) SaveFailedRecords(headers []string, failed []FailedImport) (string, error) {
	if len(failed) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(d.config.FailedDir, 0755); err != nil {
		return "", fmt.Errorf("error creating %s directory: %w", d.config.FailedDir, err)
	}

	timestamp := d.now().Format("20060102_150405")
	failedFile := filepath.Join(d.config.FailedDir, fmt.Sprintf("failed_records_%s.csv", timestamp))

	file, err := os.Create(failedFile)
	if err != nil {
		return "", fmt.Errorf("error creating failed records file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := append([]string{"row"}, headers...)
	header = append(header, "error_code", "error", "candidates")
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("error writing headers: %w", err)
	}

	for _, f := range failed {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(f.Row))
		for i := range headers {
			value := ""
			if i < len(f.RowData) {
				value = f.RowData[i]
			}
			record = append(record, value)
		}
		record = append(record, f.ErrorCode, f.FailReason, strings.Join(f.Candidates, " "))
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("error writing record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("error flushing failed records: %w", err)
	}

	d.logger.Info("failed records saved", zap.String("path", failedFile), zap.Int("rows", len(failed)))
	return failedFile, nil
}

func (d *DataImporter) logSummary(s *ImportSummary) {
	fields := []zap.Field{
		zap.String("source", s.SourceFile),
		zap.Int("rows", s.TotalRows),
		zap.Int("resolved", s.Resolved),
		zap.Int("failed", len(s.Failed)),
		zap.Int("placement_mismatches", s.PlacementMismatches),
		zap.Bool("validate_only", s.ValidateOnly),
	}
	if !s.ValidateOnly {
		fields = append(fields,
			zap.Int("inserted", s.Stats.Inserted),
			zap.Int("updated", s.Stats.Updated),
			zap.Int("collapsed", s.Stats.Collapsed))
	}
	d.logger.Info("import finished", fields...)

	for _, r := range s.Reasons() {
		d.logger.Info("failure reason", zap.String("code", r.Code), zap.Int("count", r.Count))
	}
}
