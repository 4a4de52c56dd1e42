// Package frames extracts the final frame of completed video results so a
// video chain can continue from its tail.
package frames

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/library"
	"github.com/vividlab/canvasflow/pkg/models"
)

// Runner decodes a video file and writes its final frame as a still image.
type Runner interface {
	ExtractLastFrame(ctx context.Context, videoPath, framePath string) error
}

// FFmpegRunner shells out to ffmpeg, seeking from the end of the stream.
type FFmpegRunner struct {
	Binary string
}

func (r FFmpegRunner) ExtractLastFrame(ctx context.Context, videoPath, framePath string) error {
	binary := r.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, binary,
		"-sseof", "-1",
		"-i", videoPath,
		"-update", "1",
		"-frames:v", "1",
		"-q:v", "2",
		"-y", framePath,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, truncate(string(output), 256))
	}

	return nil
}

// Extractor tracks which nodes it already tried, one attempt per node per
// process lifetime. The attempted set belongs to the extractor instance, so
// independent sessions and tests never share state. A failed extraction is
// not retried: the node stays displayable without its last frame.
type Extractor struct {
	graph   *graph.Graph
	library *library.Library
	runner  Runner
	logger  *slog.Logger

	mu        sync.Mutex
	attempted map[string]bool
}

func NewExtractor(g *graph.Graph, lib *library.Library, runner Runner, logger *slog.Logger) *Extractor {
	if runner == nil {
		runner = FFmpegRunner{}
	}

	return &Extractor{
		graph:     g,
		library:   lib,
		runner:    runner,
		logger:    logger.With("module", "frames"),
		attempted: make(map[string]bool),
	}
}

// Scan walks the graph and extracts the last frame for every video node with
// a successful result and no frame yet. Best-effort enrichment: failures are
// logged and never alter node status.
func (e *Extractor) Scan(ctx context.Context) {
	for _, node := range e.graph.Nodes() {
		if node.Type != models.NodeTypeVideo ||
			node.Status != models.NodeStatusSuccess ||
			node.ResultURL == "" ||
			node.LastFrame != "" {
			continue
		}

		if !e.begin(node.ID) {
			continue
		}

		if err := e.extract(ctx, node); err != nil {
			e.logger.Warn("Last-frame extraction failed", "node_id", node.ID, "error", err)
		}
	}
}

// begin marks a node attempted; false means it was already tried.
func (e *Extractor) begin(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attempted[nodeID] {
		return false
	}

	e.attempted[nodeID] = true

	return true
}

// Forget drops a node from the attempted set. Called when the node leaves
// the graph.
func (e *Extractor) Forget(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.attempted, nodeID)
}

func (e *Extractor) extract(ctx context.Context, node *models.Node) error {
	videoPath, err := e.library.AssetPath(node.ResultURL)
	if err != nil {
		return err
	}

	framePath := filepath.Join(os.TempDir(), "canvasflow-frame-"+node.ID+".png")
	defer os.Remove(framePath)

	if err := e.runner.ExtractLastFrame(ctx, videoPath, framePath); err != nil {
		return err
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return fmt.Errorf("failed to read extracted frame: %w", err)
	}

	frame := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	e.graph.UpdateNode(node.ID, models.NodeUpdate{LastFrame: &frame})
	e.logger.Info("Last frame extracted", "node_id", node.ID, "bytes", len(data))

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
