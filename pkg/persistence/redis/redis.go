// Package redis provides a Redis-backed persistence for workflow documents,
// for deployments where the canvas server is not colocated with disk.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence"
)

const workflowsKey = "canvasflow:workflows"

type Persistence struct {
	client *goredis.Client
}

// NewPersistence connects to Redis using a redis:// URL.
func NewPersistence(redisURL string) (persistence.Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Persistence{client: client}, nil
}

func (rp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	values, err := rp.client.HGetAll(ctx, workflowsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(values))

	for id, value := range values {
		var workflow models.Workflow
		if err := json.Unmarshal([]byte(value), &workflow); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})

	return workflows, nil
}

func (rp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	if workflow.CoverURL == "" || workflow.CreatedAt.IsZero() {
		if existing, err := rp.WorkflowByID(ctx, workflow.ID); err == nil {
			if workflow.CoverURL == "" {
				workflow.CoverURL = existing.CoverURL
			}

			if workflow.CreatedAt.IsZero() {
				workflow.CreatedAt = existing.CreatedAt
			}
		}
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	if err := rp.client.HSet(ctx, workflowsKey, workflow.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (rp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	value, err := rp.client.HGet(ctx, workflowsKey, id).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal([]byte(value), &workflow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (rp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	removed, err := rp.client.HDel(ctx, workflowsKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	if removed == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (rp *Persistence) HealthCheck(ctx context.Context) error {
	return rp.client.Ping(ctx).Err()
}

func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}
