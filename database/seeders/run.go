// Package seeders holds the data seeders for the demo app, run after
// migrations by `setu db seed`.
package seeders

import (
	"errors"

	"gorm.io/gorm"

	"github.com/setulabs/setu/app/models"
	"github.com/setulabs/setu/config"
	"github.com/setulabs/setu/pkg/auth"
	"github.com/setulabs/setu/pkg/database"
	"github.com/setulabs/setu/pkg/logger"
)

// All returns every seeder in execution order.
func All() []database.Seeder {
	return []database.Seeder{
		{Name: "admin-user", Run: seedAdminUser},
	}
}

// seedAdminUser creates the bootstrap admin account from ADMIN_EMAIL
// and ADMIN_PASSWORD. Without a configured password it does nothing
// rather than invent a credential.
func seedAdminUser(db *gorm.DB) error {
	password := config.AdminPassword()
	if password == "" {
		logger.Warn("seed: ADMIN_PASSWORD not set, skipping admin user")
		return nil
	}

	email := config.AdminEmail()
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil // already seeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
	}
	return db.Create(&admin).Error
}
