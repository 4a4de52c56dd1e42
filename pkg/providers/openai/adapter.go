// Package openai implements the OpenAI image adapter. Text-to-image and
// image-to-image are genuinely different endpoints; the choice is made solely
// by whether input images were supplied.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vividlab/canvasflow/pkg/providers"
)

type Adapter struct {
	client *openai.Client
	logger *slog.Logger
}

func NewAdapter(apiKey string, logger *slog.Logger) *Adapter {
	adapter := &Adapter{logger: logger.With("module", "openai_adapter")}
	if apiKey != "" {
		adapter.client = openai.NewClient(apiKey)
	}

	return adapter
}

func (a *Adapter) Generate(ctx context.Context, req providers.Request) ([]byte, error) {
	if a.client == nil {
		return nil, providers.NewConfigError(providers.ProviderOpenAI, "OPENAI_API_KEY is not configured")
	}

	size := mapSize(req.AspectRatio)
	quality := mapQuality(req.Resolution)

	var (
		b64 string
		err error
	)

	if len(req.Images) > 0 {
		b64, err = a.edit(ctx, req, size, quality)
	} else {
		b64, err = a.create(ctx, req, size, quality)
	}

	if err != nil {
		return nil, classify(err)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderOpenAI, "invalid base64 image payload", err)
	}

	return data, nil
}

func (a *Adapter) create(ctx context.Context, req providers.Request, size, quality string) (string, error) {
	resp, err := a.client.CreateImage(ctx, openai.ImageRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		N:       1,
		Size:    size,
		Quality: quality,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", providers.NewTransientError(providers.ProviderOpenAI, "response contained no image data", nil)
	}

	return resp.Data[0].B64JSON, nil
}

func (a *Adapter) edit(ctx context.Context, req providers.Request, size, quality string) (string, error) {
	images := make([]io.Reader, 0, len(req.Images))

	for i, encoded := range req.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", providers.NewTransientError(providers.ProviderOpenAI, "invalid input image payload", err)
		}

		images = append(images, openai.WrapReader(bytes.NewReader(data),
			"input-"+strconv.Itoa(i)+".png", "image/png"))
	}

	resp, err := a.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Image:   images,
		N:       1,
		Size:    size,
		Quality: quality,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Data) == 0 {
		return "", providers.NewTransientError(providers.ProviderOpenAI, "response contained no image data", nil)
	}

	return resp.Data[0].B64JSON, nil
}

// mapSize maps a free-form aspect ratio onto the provider's discrete size
// enumeration, nearest fit.
func mapSize(aspectRatio string) string {
	switch aspectRatio {
	case "", "Auto":
		return "auto"
	case "1:1":
		return "1024x1024"
	}

	parts := strings.SplitN(aspectRatio, ":", 2)
	if len(parts) != 2 {
		return "auto"
	}

	width, errW := strconv.ParseFloat(parts[0], 64)
	height, errH := strconv.ParseFloat(parts[1], 64)

	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return "auto"
	}

	switch {
	case width > height:
		return "1536x1024"
	case height > width:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}

// mapQuality maps the resolution setting onto the provider's quality tiers.
func mapQuality(resolution string) string {
	switch resolution {
	case "480p":
		return "low"
	case "720p":
		return "medium"
	case "1080p", "4k":
		return "high"
	default:
		return "medium"
	}
}

func classify(err error) error {
	var typed *providers.Error
	if errors.As(err, &typed) {
		return typed
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := providers.ErrorKindTransient
		if apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403 {
			kind = providers.ErrorKindPermission
		}

		return &providers.Error{
			Provider: providers.ProviderOpenAI,
			Kind:     kind,
			Message:  fmt.Sprintf("API returned status %d: %s", apiErr.HTTPStatusCode, apiErr.Message),
		}
	}

	return providers.NewTransientError(providers.ProviderOpenAI, "request failed", err)
}
