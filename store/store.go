// Package store persists fact records and reads the roster they are
// reconciled against. Callers receive a store explicitly; nothing here keeps
// process-wide state.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/nonsonwune/colegio_db/config"
	"github.com/nonsonwune/colegio_db/dedup"
	"github.com/nonsonwune/colegio_db/models"
)

// FactStore holds the fact collection. Put replaces the whole collection.
type FactStore interface {
	Get(ctx context.Context) ([]models.FactRecord, error)
	Put(ctx context.Context, facts []models.FactRecord) error
}

// RosterStore exposes the roster and section catalog maintained by the
// school application.
type RosterStore interface {
	Students(ctx context.Context) ([]models.Student, error)
	Sections(ctx context.Context) ([]models.Section, error)
	Aliases(ctx context.Context) ([]models.IDAlias, error)
}

// RosterWriter replaces the roster, catalog and alias table at once.
type RosterWriter interface {
	PutRoster(ctx context.Context, r Roster) error
}

// Store is implemented by every backend.
type Store interface {
	FactStore
	RosterStore
	RosterWriter
	Close() error
}

// Roster bundles the reference data a batch is resolved against.
type Roster struct {
	Students []models.Student `json:"students"`
	Sections []models.Section `json:"sections"`
	Aliases  []models.IDAlias `json:"aliases,omitempty"`
}

// Sync reads the full collection, merges incoming into it and writes the
// result back. There is no isolation between concurrent syncs: the last
// writer wins at collection granularity.
func Sync(ctx context.Context, fs FactStore, incoming []models.FactRecord) (dedup.Stats, error) {
	existing, err := fs.Get(ctx)
	if err != nil {
		return dedup.Stats{}, fmt.Errorf("failed to read facts: %w", err)
	}

	merged, stats := dedup.Merge(existing, incoming)
	if err := fs.Put(ctx, merged); err != nil {
		return dedup.Stats{}, fmt.Errorf("failed to write facts: %w", err)
	}
	return stats, nil
}

// Purge removes every fact inside scope and returns how many were removed.
func Purge(ctx context.Context, fs FactStore, scope dedup.Scope) (int, error) {
	existing, err := fs.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read facts: %w", err)
	}

	kept, removed, err := dedup.Prune(existing, scope)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	if err := fs.Put(ctx, kept); err != nil {
		return 0, fmt.Errorf("failed to write facts: %w", err)
	}
	return removed, nil
}

// Repair collapses duplicate facts written before deduplication existed.
func Repair(ctx context.Context, fs FactStore) (int, error) {
	existing, err := fs.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read facts: %w", err)
	}

	collapsed, removed := dedup.Collapse(existing)
	if removed == 0 {
		return 0, nil
	}
	if err := fs.Put(ctx, collapsed); err != nil {
		return 0, fmt.Errorf("failed to write facts: %w", err)
	}
	return removed, nil
}

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return NewSQL(ctx, db, config.DriverPostgres, logger)
	case config.DriverSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// modernc's sqlite serializes writers; one connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		return NewSQL(ctx, db, config.DriverSQLite, logger)
	case config.DriverDocument:
		return NewDocument(cfg.DocumentPath), nil
	case config.DriverMemory:
		return NewMemory(Roster{}, nil), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
}
