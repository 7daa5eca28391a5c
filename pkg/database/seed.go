package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/setulabs/setu/pkg/logger"
)

// Seeder populates bootstrap or reference data. Run must be
// idempotent: seeding an already-seeded database is a no-op, not an
// error.
type Seeder struct {
	Name string
	Run  func(db *gorm.DB) error
}

// Seed executes the seeders in order and stops at the first failure.
func Seed(db *gorm.DB, seeders ...Seeder) error {
	for _, s := range seeders {
		logger.Info("database: seeding", "name", s.Name)
		if err := s.Run(db); err != nil {
			return fmt.Errorf("database: seed %s: %w", s.Name, err)
		}
	}
	return nil
}
