package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nonsonwune/colegio_db/dedup"
	"github.com/nonsonwune/colegio_db/importer"
	"github.com/nonsonwune/colegio_db/matcher"
	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/store"
)

type importOptions struct {
	validateOnly bool
	recordType   string
	columnMap    string
	workers      int
	batchSize    int
}

func (a *app) importConfig(path string, opts importOptions) (importer.ImportConfig, error) {
	loc, err := a.cfg.Import.Location()
	if err != nil {
		return importer.ImportConfig{}, err
	}

	cfg := importer.ImportConfig{
		SourceFile:   path,
		Separator:    a.cfg.Import.CompoundIDSeparator,
		BatchSize:    a.cfg.Import.BatchSize,
		WorkerCount:  a.cfg.Import.Workers,
		ValidateOnly: opts.validateOnly,
		FailedDir:    a.cfg.Import.FailedImportsDir,
		DefaultType:  opts.recordType,
		Location:     loc,
	}
	if opts.workers > 0 {
		cfg.WorkerCount = opts.workers
	}
	if opts.batchSize > 0 {
		cfg.BatchSize = opts.batchSize
	}

	columnMap := opts.columnMap
	if columnMap == "" {
		columnMap = a.cfg.Import.ColumnMapPath
	}
	if columnMap != "" {
		overrides, err := importer.LoadColumnMap(columnMap)
		if err != nil {
			return importer.ImportConfig{}, err
		}
		cfg.ColumnOverrides = overrides
	}
	return cfg, nil
}

func (a *app) runImport(ctx context.Context, path string, opts importOptions) (*importer.ImportSummary, error) {
	cfg, err := a.importConfig(path, opts)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	return importer.NewDataImporter(a.store, a.store, cfg, a.logger).ImportData(ctx, file)
}

func (a *app) runAnalyze(ctx context.Context, path string, opts importOptions) (*importer.ImportSummary, error) {
	cfg, err := a.importConfig(path, opts)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	return importer.NewDataImporter(a.store, a.store, cfg, a.logger).Analyze(ctx, file)
}

func addImportFlags(cmd *cobra.Command, opts *importOptions) {
	cmd.Flags().StringVarP(&opts.recordType, "type", "t", "", "record type for files without a type column (nota, asistencia)")
	cmd.Flags().StringVar(&opts.columnMap, "column-map", "", "YAML file mapping fields to header names")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel resolution workers (default from IMPORT_WORKERS)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "rows per worker task (default from IMPORT_BATCH_SIZE)")
}

func (a *app) importCommand() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a grade or attendance file",
		Long: `Import a delimited grade or attendance export. Rows are matched to roster
students by RUT, then by name, and to catalog sections by course and section
label or compound id. Unresolved rows are written to the failed imports
directory; resolved rows are merged into the fact store.`,
		Example: `  colegio_db import notas_marzo.csv
  colegio_db import asistencia.csv --type asistencia --workers 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.runImport(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printImportSummary(summary)
			return nil
		},
	}
	addImportFlags(cmd, &opts)
	cmd.Flags().BoolVar(&opts.validateOnly, "validate-only", false, "resolve and report without writing facts")
	return cmd
}

func (a *app) analyzeCommand() *cobra.Command {
	var opts importOptions
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Dry-run an import and show why rows would fail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.runAnalyze(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printAnalysis(summary)
			return nil
		},
	}
	addImportFlags(cmd, &opts)
	return cmd
}

func (a *app) runMatch(ctx context.Context, c models.CandidateRecord) error {
	roster, courses, err := importer.LoadIndexes(ctx, a.store)
	if err != nil {
		return err
	}

	who := matcher.MatchStudent(c, roster)
	printResolution("Student", who, func(id string) string {
		if st, ok := roster.Student(id); ok {
			return fmt.Sprintf("%s (%s %s)", st.FullName, st.CourseName, st.SectionName)
		}
		return ""
	})

	var where matcher.Resolution
	switch {
	case c.CompoundID != "":
		where = matcher.ResolveCompoundID(c.CompoundID, a.cfg.Import.CompoundIDSeparator, courses)
	case c.Course != "":
		where = matcher.MatchCourseSection(c.Course, c.Section, courses)
	default:
		return nil
	}
	printResolution("Section", where, func(id string) string {
		if sec, ok := courses.Section(id); ok {
			return sec.DisplayName()
		}
		return ""
	})
	return nil
}

func (a *app) matchCommand() *cobra.Command {
	var c models.CandidateRecord
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show how a student and placement would be resolved",
		Example: `  colegio_db match --rut 12.345.678-5 --course "Primero Básico" --section A
  colegio_db match --name "Juan Pérez"
  colegio_db match --rut 12345678-5 --compound 101-7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(c.RUT) == "" && strings.TrimSpace(c.FullName) == "" {
				return fmt.Errorf("--rut or --name is required")
			}
			return a.runMatch(cmd.Context(), c)
		},
	}
	cmd.Flags().StringVar(&c.RUT, "rut", "", "student RUT")
	cmd.Flags().StringVar(&c.FullName, "name", "", "student full name")
	cmd.Flags().StringVar(&c.Course, "course", "", "declared course label")
	cmd.Flags().StringVar(&c.Section, "section", "", "declared section label")
	cmd.Flags().StringVar(&c.CompoundID, "compound", "", "compound course/section id")
	return cmd
}

func (a *app) purgeCommand() *cobra.Command {
	var (
		scope dedup.Scope
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every fact of a school year and/or course",
		Example: `  colegio_db purge --year 2023
  colegio_db purge --year 2024 --course 3f2b9c1e --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope.IsZero() {
				return dedup.ErrEmptyScope
			}
			if !yes && !confirm(os.Stdin, fmt.Sprintf("Delete all facts for %s? (y/n): ", describeScope(scope))) {
				fmt.Println("Purge cancelled.")
				return nil
			}
			removed, err := store.Purge(cmd.Context(), a.store, scope)
			if err != nil {
				return err
			}
			a.logger.Info("facts purged", zap.Int("year", scope.Year), zap.String("course_id", scope.CourseID), zap.Int("removed", removed))
			color.Green("Removed %d facts.", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&scope.Year, "year", 0, "school year")
	cmd.Flags().StringVar(&scope.CourseID, "course", "", "course id")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func describeScope(scope dedup.Scope) string {
	var parts []string
	if scope.Year != 0 {
		parts = append(parts, fmt.Sprintf("year %d", scope.Year))
	}
	if scope.CourseID != "" {
		parts = append(parts, "course "+scope.CourseID)
	}
	return strings.Join(parts, " and ")
}

func (a *app) repairCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Collapse duplicate facts written by earlier imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := store.Repair(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			a.logger.Info("duplicates collapsed", zap.Int("removed", removed))
			if removed == 0 {
				color.Green("No duplicates found.")
				return nil
			}
			color.Green("Collapsed %d duplicate facts.", removed)
			return nil
		},
	}
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fact counts per course, section and record type",
		RunE: func(cmd *cobra.Command, args []string) error {
			facts, err := a.store.Get(cmd.Context())
			if err != nil {
				return err
			}
			printStats(summarizeFacts(facts))
			return nil
		},
	}
}

func (a *app) loadRoster(ctx context.Context, path string) (store.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Roster{}, fmt.Errorf("error reading roster: %w", err)
	}
	var roster store.Roster
	if err := json.Unmarshal(data, &roster); err != nil {
		return store.Roster{}, fmt.Errorf("error decoding roster %s: %w", path, err)
	}
	// reject an unusable roster before replacing the current one
	if _, err := matcher.NewRosterIndex(roster.Students); err != nil {
		return store.Roster{}, err
	}
	if _, err := matcher.NewCourseIndex(roster.Sections, roster.Aliases); err != nil {
		return store.Roster{}, err
	}
	if err := a.store.PutRoster(ctx, roster); err != nil {
		return store.Roster{}, err
	}
	return roster, nil
}

func (a *app) rosterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the roster snapshot",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.json>",
		Short: "Replace the roster, section catalog and id aliases from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := a.loadRoster(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			color.Green("Loaded %d students, %d sections, %d aliases.",
				len(roster.Students), len(roster.Sections), len(roster.Aliases))
			return nil
		},
	})
	return cmd
}
