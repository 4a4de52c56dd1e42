// Package recovery heals nodes whose session ended while a job was in
// flight: it reconciles loading nodes against results persisted under the
// same node id.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/vividlab/canvasflow/pkg/dispatcher"
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/models"
)

const DefaultInterval = 10 * time.Second

// StatusChecker looks up whether a persisted result exists for a node id.
// The library satisfies this.
type StatusChecker interface {
	Lookup(id string) (*models.GenerationStatus, error)
}

type Poller struct {
	graph    *graph.Graph
	checker  StatusChecker
	interval time.Duration
	logger   *slog.Logger
}

func NewPoller(g *graph.Graph, checker StatusChecker, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		graph:    g,
		checker:  checker,
		interval: interval,
		logger:   logger.With("module", "recovery"),
	}
}

// Start runs the poll loop until the context is cancelled. Lookup failures
// skip the tick; they must never stop the loop.
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Tick()
			}
		}
	}()
}

// Tick checks every loading node once. The working set is derived from the
// current loading statuses, so a node healed on one tick drops out of the
// next automatically. A node with no persisted result is left loading: a
// false "still pending" is safer than falsely declaring failure on a slow
// job, so there is no client-driven timeout here.
func (p *Poller) Tick() {
	for _, nodeID := range p.graph.LoadingNodes() {
		status, err := p.checker.Lookup(nodeID)
		if err != nil {
			p.logger.Warn("Status lookup failed, skipping tick", "node_id", nodeID, "error", err)

			continue
		}

		if status.Status != "success" {
			continue
		}

		if dispatcher.ApplySuccess(p.graph, nodeID, status.ResultURL, "") {
			p.logger.Info("Recovered completed generation", "node_id", nodeID, "result_url", status.ResultURL)
		}
	}
}
