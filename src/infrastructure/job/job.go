// Package job queues document ingestion onto a message broker so uploads
// can run outside the CLI process. Job rows persist in Postgres, the queue
// only carries pointers back to them.
package job

import (
	"context"
	"encoding/json"
	"time"
)

// Status of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskTypeIngest names the only task the worker currently runs.
const TaskTypeIngest = "ingest_pdf"

// Job is one persisted unit of background work.
type Job struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	TaskType  string          `gorm:"not null" json:"task_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    Status          `gorm:"not null" json:"status"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IngestPayload carries the parameters of one queued upload. The worker
// resolves Path on its own filesystem, so enqueue and worker processes must
// share the upload location.
type IngestPayload struct {
	Path      string `json:"path"`
	IndexName string `json:"index_name"`
}

// Repository persists jobs and their status transitions.
type Repository interface {
	Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int64) (*Job, error)
	UpdateStatus(ctx context.Context, id int64, status Status, errMsg *string) error
}
