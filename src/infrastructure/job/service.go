package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"paperchat/src/core/rag"
	"paperchat/src/log"
)

// DefaultQueue is the broker topic ingestion jobs travel on.
const DefaultQueue = "ingest_jobs"

// Ingester runs the synchronous ingestion pipeline for one upload.
type Ingester interface {
	Ingest(ctx context.Context, path, indexName string) (*rag.IngestResult, error)
}

// Service enqueues jobs on the publisher side and executes them on the
// worker side.
type Service struct {
	publisher message.Publisher
	repo      Repository
	ingester  Ingester
	queue     string
}

// JobMessage is the queue envelope. The payload rides along so the worker
// can fail fast on malformed jobs without a database read.
type JobMessage struct {
	JobID    int64           `json:"job_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

// NewService wires a job service. The ingester may be nil on processes that
// only enqueue.
func NewService(publisher message.Publisher, repo Repository, ingester Ingester, queue string) *Service {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Service{
		publisher: publisher,
		repo:      repo,
		ingester:  ingester,
		queue:     queue,
	}
}

// EnqueueIngest persists a pending job for path and publishes it to the
// queue.
func (s *Service) EnqueueIngest(ctx context.Context, path, indexName string) (*Job, error) {
	payload, err := json.Marshal(IngestPayload{Path: path, IndexName: indexName})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}

	j, err := s.repo.Create(ctx, TaskTypeIngest, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	data, err := json.Marshal(JobMessage{
		JobID:    j.ID,
		TaskType: j.TaskType,
		Payload:  j.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := s.publisher.Publish(s.queue, msg); err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	log.Info("enqueued ingestion job", "job_id", j.ID, "path", path, "index", indexName)
	return j, nil
}

// Queue returns the broker topic the service publishes to and consumes from.
func (s *Service) Queue() string {
	return s.queue
}

// ProcessMessage executes one job message from the queue, moving the job
// row through running and into completed or failed. Returning an error lets
// the router's retry middleware redeliver; replace-on-ingest keeps retries
// idempotent.
func (s *Service) ProcessMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	ctx := msg.Context()

	j, err := s.repo.Get(ctx, jobMsg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if j == nil {
		return fmt.Errorf("job %d not found", jobMsg.JobID)
	}

	if err := s.repo.UpdateStatus(ctx, j.ID, StatusRunning, nil); err != nil {
		return fmt.Errorf("failed to mark job %d running: %w", j.ID, err)
	}

	if err := s.run(ctx, j); err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, j.ID, StatusFailed, &errStr); updateErr != nil {
			log.Error(updateErr, "failed to mark job failed", "job_id", j.ID)
		}
		return fmt.Errorf("failed to process job %d: %w", j.ID, err)
	}

	if err := s.repo.UpdateStatus(ctx, j.ID, StatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to mark job %d completed: %w", j.ID, err)
	}
	return nil
}

func (s *Service) run(ctx context.Context, j *Job) error {
	switch j.TaskType {
	case TaskTypeIngest:
		var payload IngestPayload
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
		}
		if s.ingester == nil {
			return fmt.Errorf("no ingester configured")
		}
		result, err := s.ingester.Ingest(ctx, payload.Path, payload.IndexName)
		if err != nil {
			return err
		}
		log.Info("ingestion job finished",
			"job_id", j.ID,
			"document", result.DocumentName,
			"indexed", result.Indexed,
		)
		return nil
	default:
		return fmt.Errorf("unknown task type: %s", j.TaskType)
	}
}
