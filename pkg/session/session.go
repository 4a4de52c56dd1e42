// Package session owns the live editing state of a single canvas: the
// node graph, its identity as a persisted workflow, and the background
// workers that keep it healthy (auto-save, generation recovery, last
// frame extraction).
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/vividlab/canvasflow/pkg/frames"
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/recovery"
	"github.com/vividlab/canvasflow/pkg/services"
)

const DefaultTitle = "Untitled Canvas"

// Session is safe for concurrent use by HTTP handlers and the
// background cron entries.
type Session struct {
	graph     *graph.Graph
	workflows *services.Workflow
	poller    *recovery.Poller
	extractor *frames.Extractor
	logger    *slog.Logger

	cron *cron.Cron

	mu             sync.Mutex
	workflowID     string
	title          string
	coverURL       string
	savedTitle     string
	savedNodeCount int
	saving         bool
}

func New(
	g *graph.Graph,
	workflows *services.Workflow,
	poller *recovery.Poller,
	extractor *frames.Extractor,
	logger *slog.Logger,
) *Session {
	return &Session{
		graph:      g,
		workflows:  workflows,
		poller:     poller,
		extractor:  extractor,
		logger:     logger.With("module", "session"),
		title:      DefaultTitle,
		savedTitle: DefaultTitle,
	}
}

// Start launches the recovery poller and schedules the periodic
// maintenance jobs. It returns once the schedule is running.
func (s *Session) Start(ctx context.Context) error {
	if s.poller != nil {
		s.poller.Start(ctx)
	}

	c := cron.New()

	if _, err := c.AddFunc("@every 1m", func() {
		s.AutoSave(ctx)
	}); err != nil {
		return err
	}

	if s.extractor != nil {
		if _, err := c.AddFunc("@every 15s", func() {
			s.extractor.Scan(ctx)
		}); err != nil {
			return err
		}
	}

	c.Start()
	s.cron = c

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Session) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Session) Graph() *graph.Graph {
	return s.graph
}

func (s *Session) WorkflowID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.workflowID
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.title
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = DefaultTitle
	}

	s.title = title
}

func (s *Session) SetCoverURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coverURL = url
}

// Dirty reports whether the canvas has diverged from the last saved
// snapshot. Node count and title are the signals; edits inside a node
// surface as a count change once generation completes and persists.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	return s.graph.Len() != s.savedNodeCount || s.title != s.savedTitle
}

// Save persists the current canvas as a workflow. The first save
// assigns the workflow its identity; later saves update the same
// record.
func (s *Session) Save(ctx context.Context) (*models.Workflow, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()

		return nil, ErrSaveInFlight
	}
	s.saving = true
	workflow := &models.Workflow{
		ID:       s.workflowID,
		Title:    s.title,
		CoverURL: s.coverURL,
		Nodes:    s.graph.Nodes(),
		Groups:   s.graph.Groups(),
	}
	s.mu.Unlock()

	saved, err := s.workflows.Save(ctx, workflow)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	if err != nil {
		return nil, err
	}

	s.workflowID = saved.ID
	s.savedTitle = saved.Title
	s.savedNodeCount = len(saved.Nodes)

	return saved, nil
}

// AutoSave saves the canvas when it is dirty and non-empty. Failures
// are logged and leave the dirty state intact so the next tick retries.
func (s *Session) AutoSave(ctx context.Context) {
	s.mu.Lock()
	skip := !s.dirtyLocked() || s.graph.Len() == 0 || s.saving
	s.mu.Unlock()

	if skip {
		return
	}

	if _, err := s.Save(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Auto-save failed", "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Auto-saved canvas", "workflow_id", s.WorkflowID())
}

// Open replaces the canvas with a persisted workflow and adopts its
// identity. The loaded state counts as the saved snapshot.
func (s *Session) Open(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.workflows.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.graph.Replace(workflow)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflowID = workflow.ID
	s.title = workflow.Title
	s.coverURL = workflow.CoverURL
	s.savedTitle = workflow.Title
	s.savedNodeCount = len(workflow.Nodes)

	return workflow, nil
}

// NewCanvas clears the graph and the workflow identity so the next
// save creates a fresh record.
func (s *Session) NewCanvas() {
	s.graph.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflowID = ""
	s.title = DefaultTitle
	s.coverURL = ""
	s.savedTitle = DefaultTitle
	s.savedNodeCount = 0
}

// DeleteNode removes a node and releases any per-node worker state
// tied to it.
func (s *Session) DeleteNode(id string) bool {
	if !s.graph.DeleteNode(id) {
		return false
	}

	if s.extractor != nil {
		s.extractor.Forget(id)
	}

	return true
}
