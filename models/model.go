package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Model status values. A model moves pending -> run_created, or
// pending -> expired when the reaper collects an orphaned artifact.
const (
	ModelStatusPending    = "pending"
	ModelStatusRunCreated = "run_created"
	ModelStatusExpired    = "expired"
)

const RunStatusQueued = "queued"

type Model struct {
	ModelID   string         `gorm:"column:model_id;type:varchar(64);primaryKey" json:"model_id"`
	ModelName string         `gorm:"column:model_name;type:varchar(512);not null" json:"model_name"`
	FileKey   string         `gorm:"column:file_key;type:varchar(1024);not null;uniqueIndex:idx_model_file_key" json:"file_key"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	Status    string         `gorm:"column:status;type:varchar(32);default:'pending';index:idx_model_status" json:"status"`
	RunID     string         `gorm:"column:run_id;type:varchar(64)" json:"run_id,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;index:idx_model_created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp" json:"updated_at"`
}

func (Model) TableName() string {
	return "models"
}

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.Status == "" {
		m.Status = ModelStatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (m *Model) HasRun() bool {
	return m.RunID != ""
}

type Run struct {
	RunID      string    `gorm:"column:run_id;type:varchar(64);primaryKey" json:"run_id"`
	ModelID    string    `gorm:"column:model_id;type:varchar(64);not null;uniqueIndex:idx_run_model_id" json:"model_id"`
	Status     string    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// Dispatched is set once the run task is on the queue.
	Dispatched bool      `gorm:"column:dispatched;not null;default:false" json:"dispatched"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamp" json:"created_at"`
}

func (Run) TableName() string {
	return "runs"
}

// RunTask is what the simulation worker pops from the run queue.
type RunTask struct {
	RunID     string    `json:"run_id"`
	ModelID   string    `json:"model_id"`
	FileKey   string    `json:"file_key"`
	CreatedAt time.Time `json:"created_at"`
}
