package migrations

import (
	"gorm.io/gorm"

	"github.com/setulabs/setu/app/models"
	"github.com/setulabs/setu/pkg/queue"
)

// -------- 0001: users --------

type CreateUsersTable struct{}

func (m *CreateUsersTable) Name() string { return "20260101000000_create_users_table" }

func (m *CreateUsersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{})
}

func (m *CreateUsersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("users")
}

// -------- 0002: failed jobs --------

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Name() string { return "20260101000001_create_failed_jobs_table" }

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(queue.FailedJobRecord{}.TableName())
}
