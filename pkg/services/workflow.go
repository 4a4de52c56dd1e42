// Package services implements the business operations between the HTTP
// layer and persistence.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vividlab/canvasflow/pkg/eventbus"
	"github.com/vividlab/canvasflow/pkg/events"
	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence"
)

// Workflow provides workflow document operations.
type Workflow struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
}

func NewWorkflow(p persistence.Persistence, eventBus eventbus.EventBus) *Workflow {
	return &Workflow{persistence: p, eventBus: eventBus}
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows(ctx)
}

func (s *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowByID(ctx, id)
}

// Save persists a workflow, assigning an id on first save. The persistence
// layer preserves an existing cover URL unless the record carries a new one.
func (s *Workflow) Save(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, NewValidationError("Save", ErrWorkflowNil)
	}

	if workflow.Title == "" {
		return nil, NewValidationError("Save", ErrTitleRequired)
	}

	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}

	if err := s.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	if s.eventBus != nil {
		event := events.WorkflowSaved{
			BaseEvent: events.BaseEvent{
				ID:        s.eventBus.GenerateID(),
				Type:      events.WorkflowSavedEvent,
				Timestamp: time.Now().UTC(),
			},
			WorkflowID: workflow.ID,
			NodeCount:  len(workflow.Nodes),
		}

		// Save already succeeded; a publish failure is not surfaced.
		_ = s.eventBus.Publish(ctx, workflow.ID, event)
	}

	return workflow, nil
}

func (s *Workflow) Delete(ctx context.Context, id string) error {
	return s.persistence.DeleteWorkflow(ctx, id)
}
