package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/nonsonwune/colegio_db/dedup"
	"github.com/nonsonwune/colegio_db/importer"
	"github.com/nonsonwune/colegio_db/matcher"
	"github.com/nonsonwune/colegio_db/models"
)

// sampleSize caps the failed rows echoed to the terminal.
const sampleSize = 10

func percent(n, total int) string {
	if total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}

func printImportSummary(s *importer.ImportSummary) {
	color.Cyan("\n=== Import Summary: %s ===", s.SourceFile)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Count", "Share"})
	table.Append([]string{"Rows read", fmt.Sprintf("%d", s.TotalRows), ""})
	table.Append([]string{"Resolved", fmt.Sprintf("%d", s.Resolved), percent(s.Resolved, s.TotalRows)})
	table.Append([]string{"Failed", fmt.Sprintf("%d", len(s.Failed)), percent(len(s.Failed), s.TotalRows)})
	table.Append([]string{"Placement mismatches", fmt.Sprintf("%d", s.PlacementMismatches), percent(s.PlacementMismatches, s.TotalRows)})
	if !s.ValidateOnly {
		table.Append([]string{"Inserted", fmt.Sprintf("%d", s.Stats.Inserted), ""})
		table.Append([]string{"Updated", fmt.Sprintf("%d", s.Stats.Updated), ""})
		table.Append([]string{"Duplicates collapsed", fmt.Sprintf("%d", s.Stats.Collapsed), ""})
		table.Append([]string{"Rejected by merge", fmt.Sprintf("%d", len(s.Stats.Rejected)), ""})
	}
	table.Render()

	if s.ValidateOnly {
		color.Yellow("Validate-only run: no facts were written.")
	}
	if len(s.Failed) > 0 {
		printReasons(s)
		color.Yellow("Failed rows saved to %s", s.FailedFile)
		return
	}
	color.Green("Import completed successfully!")
}

func printAnalysis(s *importer.ImportSummary) {
	color.Cyan("\n=== Analysis: %s ===", s.SourceFile)
	fmt.Printf("Rows: %d, resolvable: %d (%s), failing: %d (%s), placement mismatches: %d\n",
		s.TotalRows,
		s.Resolved, percent(s.Resolved, s.TotalRows),
		len(s.Failed), percent(len(s.Failed), s.TotalRows),
		s.PlacementMismatches)

	if len(s.Columns) > 0 {
		color.Yellow("\nColumn Mapping")
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Field", "Header", "Confidence"})
		for _, m := range s.Columns {
			table.Append([]string{m.Field, m.Header, fmt.Sprintf("%.0f%%", m.Confidence*100)})
		}
		table.Render()
	}

	if len(s.Failed) == 0 {
		color.Green("\nNo failing rows found in the file.")
		return
	}
	printReasons(s)

	color.Yellow("\nSample Failed Rows (up to %d)", sampleSize)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Row", "RUT", "Name", "Placement", "Code", "Reason"})
	table.SetAutoWrapText(false)
	for _, f := range s.Failed[:min(sampleSize, len(s.Failed))] {
		placement := strings.TrimSpace(f.Course + " " + f.Section)
		if f.CompoundID != "" {
			placement = f.CompoundID
		}
		reason := f.FailReason
		if len(f.Candidates) > 0 {
			reason += ": " + strings.Join(f.Candidates, ", ")
		}
		table.Append([]string{fmt.Sprintf("%d", f.Row), f.RUT, f.FullName, placement, f.ErrorCode, reason})
	}
	table.Render()
}

func printReasons(s *importer.ImportSummary) {
	color.Yellow("\nFailure Reasons")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Code", "Rows", "Share"})
	for _, r := range s.Reasons() {
		table.Append([]string{r.Code, fmt.Sprintf("%d", r.Count), percent(r.Count, len(s.Failed))})
	}
	table.Render()
}

func printResolution(title string, r matcher.Resolution, describe func(id string) string) {
	color.Yellow("\n%s", title)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Outcome", "Via", "Target", "Tried"})
	table.SetAutoWrapText(false)

	target := r.ID
	switch r.Outcome {
	case matcher.Matched:
		if d := describe(r.ID); d != "" {
			target = r.ID + " " + d
		}
	case matcher.Ambiguous:
		target = strings.Join(r.Candidates, ", ")
	}
	table.Append([]string{r.Outcome.String(), string(r.Via), target, strings.Join(r.Attempted, " ")})
	table.Render()

	switch {
	case r.Outcome == matcher.Ambiguous:
		color.Red("Ambiguous: %d candidates, not resolved automatically.", len(r.Candidates))
	case r.Outcome == matcher.NoMatch:
		color.Red("No match.")
	case r.PlacementMismatch:
		color.Yellow("Matched, but the declared course/section differs from the roster.")
	}
	if r.RUTConflict {
		color.Yellow("Matched by name, but the roster records a different RUT.")
	}
}

type factGroup struct {
	Course   string
	Section  string
	Type     string
	Count    int
	Students int
	First    time.Time
	Last     time.Time
}

type factStats struct {
	Total      int
	Duplicates int
	Groups     []factGroup
}

// summarizeFacts groups facts by course, section and record type.
func summarizeFacts(facts []models.FactRecord) factStats {
	type key struct{ course, section, typ string }
	groups := make(map[key]*factGroup)
	students := make(map[key]map[string]bool)

	for _, f := range facts {
		k := key{f.Course, f.Section, f.Type}
		g, ok := groups[k]
		if !ok {
			g = &factGroup{Course: f.Course, Section: f.Section, Type: f.Type, First: f.Date, Last: f.Date}
			groups[k] = g
			students[k] = make(map[string]bool)
		}
		g.Count++
		students[k][f.StudentID] = true
		if f.Date.Before(g.First) {
			g.First = f.Date
		}
		if f.Date.After(g.Last) {
			g.Last = f.Date
		}
	}

	stats := factStats{Total: len(facts)}
	_, stats.Duplicates = dedup.Collapse(facts)
	for k, g := range groups {
		g.Students = len(students[k])
		stats.Groups = append(stats.Groups, *g)
	}
	sort.Slice(stats.Groups, func(i, j int) bool {
		a, b := stats.Groups[i], stats.Groups[j]
		if a.Course != b.Course {
			return a.Course < b.Course
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return a.Type < b.Type
	})
	return stats
}

func printStats(s factStats) {
	color.Yellow("\nFacts by Course and Section")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Course", "Section", "Type", "Facts", "Students", "From", "To"})
	for _, g := range s.Groups {
		table.Append([]string{
			g.Course,
			g.Section,
			g.Type,
			fmt.Sprintf("%d", g.Count),
			fmt.Sprintf("%d", g.Students),
			g.First.Format("2006-01-02"),
			g.Last.Format("2006-01-02"),
		})
	}
	table.SetFooter([]string{"", "", "Total", fmt.Sprintf("%d", s.Total), "", "", ""})
	table.Render()

	if s.Duplicates > 0 {
		color.Red("%d duplicate facts found; run `colegio_db repair` to collapse them.", s.Duplicates)
	}
}
