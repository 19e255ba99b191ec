package store

import (
	"context"
	"slices"
	"sync"

	"github.com/nonsonwune/colegio_db/models"
)

// Memory keeps everything in process memory.
type Memory struct {
	mu     sync.RWMutex
	roster Roster
	facts  []models.FactRecord
}

// NewMemory returns a store seeded with roster and facts.
func NewMemory(roster Roster, facts []models.FactRecord) *Memory {
	m := &Memory{facts: slices.Clone(facts)}
	m.roster = cloneRoster(roster)
	return m
}

func (m *Memory) Get(ctx context.Context) ([]models.FactRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.facts), ctx.Err()
}

func (m *Memory) Put(ctx context.Context, facts []models.FactRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts = slices.Clone(facts)
	return nil
}

func (m *Memory) Students(ctx context.Context) ([]models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.roster.Students), ctx.Err()
}

func (m *Memory) Sections(ctx context.Context) ([]models.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.roster.Sections), ctx.Err()
}

func (m *Memory) Aliases(ctx context.Context) ([]models.IDAlias, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.roster.Aliases), ctx.Err()
}

func (m *Memory) PutRoster(ctx context.Context, r Roster) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = cloneRoster(r)
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneRoster(r Roster) Roster {
	return Roster{
		Students: slices.Clone(r.Students),
		Sections: slices.Clone(r.Sections),
		Aliases:  slices.Clone(r.Aliases),
	}
}
