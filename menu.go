package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/nonsonwune/colegio_db/dedup"
	"github.com/nonsonwune/colegio_db/models"
	"github.com/nonsonwune/colegio_db/store"
)

type prompter struct {
	in *bufio.Reader
}

func newPrompter(r io.Reader) *prompter {
	return &prompter{in: bufio.NewReader(r)}
}

// readString returns the next trimmed line, or io.EOF once input is
// exhausted.
func (p *prompter) readString(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) readInt(prompt string) (int, error) {
	s, err := p.readString(prompt)
	if err != nil || s == "" {
		return 0, err
	}
	return strconv.Atoi(s)
}

func (p *prompter) confirm(prompt string) bool {
	s, err := p.readString(prompt)
	return err == nil && strings.EqualFold(s, "y")
}

func confirm(r io.Reader, prompt string) bool {
	return newPrompter(r).confirm(prompt)
}

func displayMenu() {
	color.Cyan("\n=== Colegio Records Reconciliation ===")
	fmt.Println("1. Import grades or attendance")
	fmt.Println("2. Analyze a file (dry run)")
	fmt.Println("3. Match a student")
	fmt.Println("4. Fact statistics")
	fmt.Println("5. Repair duplicate facts")
	fmt.Println("6. Purge facts by year/course")
	fmt.Println("7. Load roster snapshot")
	fmt.Println("8. Exit")
}

func (a *app) runMenu(ctx context.Context, in io.Reader) error {
	p := newPrompter(in)
	for {
		displayMenu()
		choice, err := p.readString("\nEnter your choice (1-8): ")
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			err = a.menuImport(ctx, p, false)
		case "2":
			err = a.menuImport(ctx, p, true)
		case "3":
			err = a.menuMatch(ctx, p)
		case "4":
			var facts []models.FactRecord
			if facts, err = a.store.Get(ctx); err == nil {
				printStats(summarizeFacts(facts))
			}
		case "5":
			var removed int
			if removed, err = store.Repair(ctx, a.store); err == nil {
				color.Green("Collapsed %d duplicate facts.", removed)
			}
		case "6":
			err = a.menuPurge(ctx, p)
		case "7":
			err = a.menuRoster(ctx, p)
		case "8":
			color.Green("Hasta luego!")
			return nil
		default:
			color.Red("Invalid choice. Please try again.")
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			color.Red("Error: %v", err)
		}
	}
}

func (a *app) menuImport(ctx context.Context, p *prompter, analyze bool) error {
	path, err := p.readString("Enter the file path: ")
	if err != nil {
		return err
	}
	recordType, err := p.readString("Record type when the file has no type column (nota/asistencia, blank for none): ")
	if err != nil {
		return err
	}
	opts := importOptions{recordType: recordType}

	if analyze {
		summary, err := a.runAnalyze(ctx, path, opts)
		if err != nil {
			return err
		}
		printAnalysis(summary)
		return nil
	}

	fmt.Printf("\nReady to import %s using %d workers\n", path, a.cfg.Import.Workers)
	if !p.confirm("Proceed with import? (y/n): ") {
		fmt.Println("Import cancelled.")
		return nil
	}
	summary, err := a.runImport(ctx, path, opts)
	if err != nil {
		return err
	}
	printImportSummary(summary)
	return nil
}

func (a *app) menuMatch(ctx context.Context, p *prompter) error {
	var c models.CandidateRecord
	var err error
	if c.RUT, err = p.readString("RUT (blank to skip): "); err != nil {
		return err
	}
	if c.FullName, err = p.readString("Full name (blank to skip): "); err != nil {
		return err
	}
	if c.Course, err = p.readString("Course (blank to skip): "); err != nil {
		return err
	}
	if c.Section, err = p.readString("Section (blank to skip): "); err != nil {
		return err
	}
	if c.CompoundID, err = p.readString("Compound id (blank to skip): "); err != nil {
		return err
	}
	if c.RUT == "" && c.FullName == "" {
		color.Red("A RUT or a name is required.")
		return nil
	}
	return a.runMatch(ctx, c)
}

func (a *app) menuPurge(ctx context.Context, p *prompter) error {
	var scope dedup.Scope
	var err error
	if scope.Year, err = p.readInt("School year (blank for any): "); err != nil {
		return err
	}
	if scope.CourseID, err = p.readString("Course id (blank for any): "); err != nil {
		return err
	}
	if scope.IsZero() {
		color.Red("Enter a year, a course id or both.")
		return nil
	}
	if !p.confirm(fmt.Sprintf("Delete all facts for %s? (y/n): ", describeScope(scope))) {
		fmt.Println("Purge cancelled.")
		return nil
	}
	removed, err := store.Purge(ctx, a.store, scope)
	if err != nil {
		return err
	}
	color.Green("Removed %d facts.", removed)
	return nil
}

func (a *app) menuRoster(ctx context.Context, p *prompter) error {
	path, err := p.readString("Enter the roster JSON path: ")
	if err != nil {
		return err
	}
	roster, err := a.loadRoster(ctx, path)
	if err != nil {
		return err
	}
	color.Green("Loaded %d students, %d sections, %d aliases.",
		len(roster.Students), len(roster.Sections), len(roster.Aliases))
	return nil
}
