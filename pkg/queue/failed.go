package queue

import (
	"time"

	"gorm.io/gorm"

	"github.com/setulabs/setu/pkg/logger"
)

// maxRetained bounds the in-memory failure list; older entries fall
// off. The database record, when attached, keeps the full history.
const maxRetained = 100

// FailedJob is the in-memory snapshot of an exhausted job.
type FailedJob struct {
	Job      string    `json:"job"`
	Payload  string    `json:"payload"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// FailedJobRecord is the persisted form of a FailedJob.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	Job      string    `gorm:"size:255;not null;index"`
	Payload  string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"autoCreateTime"`
}

func (FailedJobRecord) TableName() string { return "setu_failed_jobs" }

// WithDB persists exhausted jobs to the database in addition to the
// in-memory list. The failed-jobs table is created if missing.
func WithDB(db *gorm.DB) Option {
	return func(q *Queue) {
		if db == nil {
			return
		}
		if err := db.AutoMigrate(&FailedJobRecord{}); err != nil {
			logger.Error("queue: migrate failed-jobs table", "error", err)
			return
		}
		q.db = db
	}
}

func (q *Queue) recordFailure(env envelope, lastErr error, attempts int) {
	f := FailedJob{
		Job:      env.Job,
		Payload:  string(env.Payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: time.Now(),
	}

	q.mu.Lock()
	q.failed = append(q.failed, f)
	if len(q.failed) > maxRetained {
		q.failed = q.failed[len(q.failed)-maxRetained:]
	}
	db := q.db
	q.mu.Unlock()

	if db == nil {
		return
	}
	record := FailedJobRecord{
		Job:      f.Job,
		Payload:  f.Payload,
		Error:    f.Error,
		Attempts: f.Attempts,
		FailedAt: f.FailedAt,
	}
	if err := db.Create(&record).Error; err != nil {
		// Non-fatal; the in-memory list still has it.
		logger.Error("queue: persist failed job", "job", f.Job, "error", err)
	}
}

// FailedJobs returns a copy of the retained failures, oldest first.
func (q *Queue) FailedJobs() []FailedJob {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]FailedJob, len(q.failed))
	copy(out, q.failed)
	return out
}

// FailedCount reports how many failures are currently retained.
func (q *Queue) FailedCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.failed)
}
