// Package migration tracks and applies reversible schema changes.
//
// Migrations are plain values handed to New; there is no global
// registry, so the list an app runs is exactly the list it passes in:
//
//	runner := migration.New(db, migrations.All()...)
//	applied, err := runner.Run()
//
// Applied names are recorded in setu_migrations together with a batch
// number; Rollback undoes the most recent batch, newest first.
package migration

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/setulabs/setu/pkg/logger"
)

// Migration is one reversible schema change. Name must be unique and
// is the sort key for execution order; a timestamp prefix
// ("20240101000000_create_users") keeps the order chronological.
type Migration interface {
	Name() string
	// Up applies the change.
	Up(db *gorm.DB) error
	// Down reverses it.
	Down(db *gorm.DB) error
}

// record is the row stored per applied migration.
type record struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (record) TableName() string { return "setu_migrations" }

// Status describes one migration for display.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

// Runner executes and tracks migrations against one database.
type Runner struct {
	db         *gorm.DB
	migrations []Migration
}

// New builds a runner for the given migrations. Input order does not
// matter; pending migrations always run sorted by name. Duplicate
// names are a wiring mistake and panic.
func New(db *gorm.DB, migrations ...Migration) *Runner {
	seen := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		if seen[m.Name()] {
			panic(fmt.Sprintf("migration: duplicate name %q", m.Name()))
		}
		seen[m.Name()] = true
	}
	return &Runner{db: db, migrations: migrations}
}

// EnsureTable creates the tracking table if it does not exist.
func (r *Runner) EnsureTable() error {
	return r.db.AutoMigrate(&record{})
}

// Pending returns the migrations that have not been applied yet,
// sorted by name.
func (r *Runner) Pending() ([]Migration, error) {
	var ran []record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}

	ranSet := make(map[string]bool, len(ran))
	for _, rec := range ran {
		ranSet[rec.Name] = true
	}

	var pending []Migration
	for _, m := range r.migrations {
		if !ranSet[m.Name()] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Name() < pending[j].Name()
	})
	return pending, nil
}

// Run applies every pending migration in a single batch and returns
// their names in execution order. A failing migration stops the run;
// the ones before it stay recorded.
func (r *Runner) Run() ([]string, error) {
	if err := r.EnsureTable(); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	pending, err := r.Pending()
	if err != nil {
		return nil, fmt.Errorf("migration: fetch pending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	batch := r.nextBatch()
	applied := make([]string, 0, len(pending))

	for _, m := range pending {
		logger.Info("migration: running", "name", m.Name(), "batch", batch)
		if err := m.Up(r.db); err != nil {
			return applied, fmt.Errorf("migration: %s up: %w", m.Name(), err)
		}
		if err := r.db.Create(&record{Name: m.Name(), Batch: batch}).Error; err != nil {
			return applied, fmt.Errorf("migration: record %s: %w", m.Name(), err)
		}
		applied = append(applied, m.Name())
	}

	logger.Info("migration: done", "ran", len(applied), "batch", batch)
	return applied, nil
}

// Rollback reverses the most recent batch, newest first, and returns
// the rolled-back names.
func (r *Runner) Rollback() ([]string, error) {
	if err := r.EnsureTable(); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.lastBatch()
	if last == 0 {
		return nil, nil
	}

	var records []record
	if err := r.db.Where("batch = ?", last).Order("id desc").Find(&records).Error; err != nil {
		return nil, err
	}

	byName := make(map[string]Migration, len(r.migrations))
	for _, m := range r.migrations {
		byName[m.Name()] = m
	}

	rolled := make([]string, 0, len(records))
	for _, rec := range records {
		m, ok := byName[rec.Name]
		if !ok {
			return rolled, fmt.Errorf("migration: cannot roll back %s: unknown to this build", rec.Name)
		}

		logger.Info("migration: rolling back", "name", rec.Name)
		if err := m.Down(r.db); err != nil {
			return rolled, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		if err := r.db.Delete(&rec).Error; err != nil {
			return rolled, err
		}
		rolled = append(rolled, rec.Name)
	}
	return rolled, nil
}

// Status reports every known migration and whether it has been applied.
func (r *Runner) Status() ([]Status, error) {
	if err := r.EnsureTable(); err != nil {
		return nil, err
	}

	var ran []record
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}

	ranMap := make(map[string]record, len(ran))
	for _, rec := range ran {
		ranMap[rec.Name] = rec
	}

	out := make([]Status, 0, len(r.migrations))
	for _, m := range r.migrations {
		st := Status{Name: m.Name()}
		if rec, ok := ranMap[m.Name()]; ok {
			st.Ran = true
			st.Batch = rec.Batch
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Runner) nextBatch() int {
	return r.lastBatch() + 1
}

func (r *Runner) lastBatch() int {
	var row struct{ Max int }
	r.db.Model(&record{}).Select("MAX(batch) as max").Scan(&row)
	return row.Max
}
