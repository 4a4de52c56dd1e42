// Package dispatcher is the single entry point for node generation: it gates
// the node state machine, selects a provider adapter by model id, invokes it
// and persists the result keyed by the node id.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vividlab/canvasflow/pkg/eventbus"
	"github.com/vividlab/canvasflow/pkg/events"
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/library"
	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/otelhelper"
	"github.com/vividlab/canvasflow/pkg/providers"
	"github.com/vividlab/canvasflow/pkg/providers/kling"
)

var (
	// ErrNodeNotFound indicates the request referenced a node the graph
	// does not contain.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEmptyPrompt indicates generation was requested without a prompt;
	// the request is a no-op and the node status is unchanged.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrNodeBusy indicates the node already has an outstanding job.
	ErrNodeBusy = errors.New("node has a generation in flight")
)

// PermissionDeniedMessage is the normalized user-facing message for
// authorization failures. Raw provider messages for these are inconsistent
// across backends and not actionable.
const PermissionDeniedMessage = "Permission denied. Check API Key configuration."

// Dispatcher owns the per-node generation state machine.
type Dispatcher struct {
	graph    *graph.Graph
	library  *library.Library
	adapters map[providers.Provider]providers.Adapter
	eventBus eventbus.EventBus
	tracer   trace.Tracer
	logger   *slog.Logger
}

func New(
	g *graph.Graph,
	lib *library.Library,
	adapters map[providers.Provider]providers.Adapter,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Dispatcher {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("canvasflow")
	}

	return &Dispatcher{
		graph:    g,
		library:  lib,
		adapters: adapters,
		eventBus: eventBus,
		tracer:   tracer,
		logger:   logger.With("module", "dispatcher"),
	}
}

// Generate runs one generation for a node. The loading transition happens
// synchronously before any network call; every failure path, including
// panics left aside, ends in the error status so a node can never stay stuck
// in loading.
func (d *Dispatcher) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	node := d.graph.Node(req.NodeID)
	if node == nil {
		return nil, ErrNodeNotFound
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = node.Prompt
	}

	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	if !ApplyLoading(d.graph, req.NodeID) {
		return nil, ErrNodeBusy
	}

	model := d.modelFor(node, req)
	provider := providers.FromModelID(model)

	adapter, ok := d.adapters[provider]
	if !ok {
		message := "no adapter configured for provider " + string(provider)
		ApplyFailure(d.graph, req.NodeID, message)

		return nil, errors.New(message)
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "generation.dispatch",
		attribute.String(otelhelper.NodeIDKey, req.NodeID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
		attribute.String(otelhelper.ModelKey, model),
		attribute.String(otelhelper.ProviderKey, string(provider)),
	)
	defer span.End()

	started := time.Now()

	d.publish(ctx, req.NodeID, events.GenerationStarted{
		BaseEvent: d.baseEvent(events.GenerationStartedEvent, req.NodeID),
		Model:     model,
		Provider:  string(provider),
	})

	providerReq, err := d.buildRequest(node, req, model, prompt, provider)
	if err != nil {
		return nil, d.fail(ctx, span, req.NodeID, err)
	}

	data, err := adapter.Generate(ctx, providerReq)
	if err != nil {
		return nil, d.fail(ctx, span, req.NodeID, err)
	}

	kind := models.AssetKindImages
	if node.Type == models.NodeTypeVideo {
		kind = models.AssetKindVideos
	}

	resultURL, err := d.library.Persist(data, kind, req.NodeID, models.AssetMetadata{
		Prompt: prompt,
		Model:  model,
	})
	if err != nil {
		return nil, d.fail(ctx, span, req.NodeID, err)
	}

	ApplySuccess(d.graph, req.NodeID, resultURL, d.aspectRatioFor(node, req))

	d.publish(ctx, req.NodeID, events.GenerationCompleted{
		BaseEvent: d.baseEvent(events.GenerationCompletedEvent, req.NodeID),
		ResultURL: resultURL,
		Duration:  time.Since(started),
	})

	d.logger.Info("Generation completed",
		"node_id", req.NodeID,
		"provider", provider,
		"model", model,
		"duration", time.Since(started),
	)

	return &models.GenerationResponse{ResultURL: resultURL}, nil
}

// fail converts any provider/network failure into the error transition plus
// a human-readable message. Callers above the dispatcher never see raw
// provider exceptions.
func (d *Dispatcher) fail(ctx context.Context, span trace.Span, nodeID string, err error) error {
	message := ClassifyError(err)
	ApplyFailure(d.graph, nodeID, message)
	otelhelper.SetError(span, err)

	d.publish(ctx, nodeID, events.GenerationFailed{
		BaseEvent: d.baseEvent(events.GenerationFailedEvent, nodeID),
		Reason:    message,
	})

	d.logger.Error("Generation failed", "node_id", nodeID, "error", err)

	return errors.New(message)
}

func (d *Dispatcher) modelFor(node *models.Node, req models.GenerationRequest) string {
	if node.Type == models.NodeTypeVideo {
		if req.VideoModel != "" {
			return req.VideoModel
		}
	} else if req.ImageModel != "" {
		return req.ImageModel
	}

	return node.Model
}

func (d *Dispatcher) aspectRatioFor(node *models.Node, req models.GenerationRequest) string {
	if req.AspectRatio != "" {
		return req.AspectRatio
	}

	return node.AspectRatio
}

// buildRequest assembles the provider-neutral request: explicit inputs from
// the client win, otherwise the graph's upstream resolution rules apply.
func (d *Dispatcher) buildRequest(node *models.Node, req models.GenerationRequest, model, prompt string, provider providers.Provider) (providers.Request, error) {
	kind := providers.RequestKindImage
	if node.Type == models.NodeTypeVideo {
		kind = providers.RequestKindVideo
	}

	providerReq := providers.Request{
		Kind:            kind,
		Model:           model,
		Prompt:          prompt,
		AspectRatio:     firstNonEmpty(req.AspectRatio, node.AspectRatio),
		Resolution:      firstNonEmpty(req.Resolution, node.Resolution),
		Duration:        req.Duration,
		LastFrameBase64: req.LastFrameBase64,
	}

	if providerReq.Duration == 0 {
		providerReq.Duration = node.Duration
	}

	if len(req.ImageBase64) > 0 {
		providerReq.Images = req.ImageBase64

		return providerReq, nil
	}

	var refs []string

	if kind == providers.RequestKindVideo {
		if ref := d.graph.ResolveVideoInput(node.ID); ref != "" {
			refs = []string{ref}
		}
	} else {
		refs = d.graph.ResolveUpstreamImages(node.ID, maxImagesFor(provider))
	}

	for _, ref := range refs {
		encoded, err := d.library.ResolveToBase64(ref)
		if err != nil {
			return providers.Request{}, err
		}

		providerReq.Images = append(providerReq.Images, encoded)
	}

	return providerReq, nil
}

// maxImagesFor is the per-provider cap on composition inputs.
func maxImagesFor(provider providers.Provider) int {
	switch provider {
	case providers.ProviderKling:
		return kling.MaxSubjectImages
	case providers.ProviderHailuo:
		return 1
	default:
		return 3
	}
}

// ClassifyError normalizes a failure into the message shown on the node.
// Authorization failures collapse into one fixed message; configuration
// errors pass through verbatim as setup instructions; anything else keeps
// the provider's raw message.
func ClassifyError(err error) string {
	var typed *providers.Error
	if errors.As(err, &typed) {
		switch typed.Kind {
		case providers.ErrorKindPermission:
			return PermissionDeniedMessage
		case providers.ErrorKindConfig:
			return typed.Message
		}
	}

	message := err.Error()
	lowered := strings.ToLower(message)

	if strings.Contains(message, "403") ||
		strings.Contains(lowered, "permission denied") ||
		strings.Contains(lowered, "permission_denied") ||
		strings.Contains(lowered, "entity not found") {
		return PermissionDeniedMessage
	}

	return message
}

func (d *Dispatcher) baseEvent(eventType events.EventType, nodeID string) events.BaseEvent {
	id := ""
	if d.eventBus != nil {
		id = d.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
	}
}

func (d *Dispatcher) publish(ctx context.Context, key string, event eventbus.Event) {
	if d.eventBus == nil {
		return
	}

	if err := d.eventBus.Publish(ctx, key, event); err != nil {
		d.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
