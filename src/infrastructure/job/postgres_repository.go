package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PostgresRepository stores jobs in a Postgres table managed by gorm.
type PostgresRepository struct {
	db   *gorm.DB
	node *snowflake.Node
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository migrates the jobs table and returns a repository
// generating snowflake IDs on node 1.
func NewPostgresRepository(db *gorm.DB) (*PostgresRepository, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}

	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("failed to migrate jobs table: %w", err)
	}

	return &PostgresRepository{db: db, node: node}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	j := &Job{
		ID:       r.node.Generate().Int64(),
		TaskType: taskType,
		Payload:  payload,
		Status:   StatusPending,
	}

	result := r.db.WithContext(ctx).Create(j)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create job: %w", result.Error)
	}
	return j, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Job, error) {
	var j Job
	result := r.db.WithContext(ctx).First(&j, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", result.Error)
	}
	return &j, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status Status, errMsg *string) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": status,
		"error":  errMsg,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d not found", id)
	}
	return nil
}
