package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nonsonwune/colegio_db/models"
)

// Document stores the roster and the fact collection in a single JSON file,
// the way the web client keeps them in a document database.
type Document struct {
	mu   sync.Mutex
	path string
}

type document struct {
	Roster
	Facts []models.FactRecord `json:"facts"`
}

// NewDocument returns a store backed by the file at path. The file is
// created on the first write.
func NewDocument(path string) *Document {
	return &Document{path: path}
}

func (d *Document) load() (document, error) {
	var doc document
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode %s: %w", d.path, err)
	}
	return doc, nil
}

// save writes through a temporary file so a crash never leaves half a
// document behind.
func (d *Document) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), d.path)
}

func (d *Document) Get(ctx context.Context) ([]models.FactRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	return doc.Facts, err
}

func (d *Document) Put(ctx context.Context, facts []models.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return err
	}
	doc.Facts = facts
	return d.save(doc)
}

func (d *Document) Students(ctx context.Context) ([]models.Student, error) {
	doc, err := d.roster(ctx)
	return doc.Students, err
}

func (d *Document) Sections(ctx context.Context) ([]models.Section, error) {
	doc, err := d.roster(ctx)
	return doc.Sections, err
}

func (d *Document) Aliases(ctx context.Context) ([]models.IDAlias, error) {
	doc, err := d.roster(ctx)
	return doc.Aliases, err
}

func (d *Document) roster(ctx context.Context) (Roster, error) {
	if err := ctx.Err(); err != nil {
		return Roster{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	return doc.Roster, err
}

func (d *Document) PutRoster(ctx context.Context, r Roster) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.load()
	if err != nil {
		return err
	}
	doc.Roster = r
	return d.save(doc)
}

func (d *Document) Close() error { return nil }
