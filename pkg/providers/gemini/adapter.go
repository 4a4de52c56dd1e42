// Package gemini implements the Gemini image and Veo video adapter. Image
// generation is synchronous; video generation submits a long-running
// operation and polls it to completion.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vividlab/canvasflow/pkg/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	videoPollInterval = 5 * time.Second
	videoPollBudget   = 300 * time.Second
)

type Adapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewAdapter(apiKey string, logger *slog.Logger) *Adapter {
	return &Adapter{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger.With("module", "gemini_adapter"),
	}
}

// Generate routes to the synchronous image path or the asynchronous Veo
// video path based on the model family.
func (a *Adapter) Generate(ctx context.Context, req providers.Request) ([]byte, error) {
	if a.apiKey == "" {
		return nil, providers.NewConfigError(providers.ProviderGemini, "GEMINI_API_KEY is not configured")
	}

	if strings.HasPrefix(req.Model, "veo") {
		return a.generateVideo(ctx, req)
	}

	return a.generateImage(ctx, req)
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentRequest struct {
	Contents []struct {
		Parts []contentPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a *Adapter) generateImage(ctx context.Context, req providers.Request) ([]byte, error) {
	parts := []contentPart{{Text: req.Prompt}}

	for _, image := range req.Images {
		parts = append(parts, contentPart{InlineData: &inlineData{
			MimeType: "image/png",
			Data:     image,
		}})
	}

	payload := generateContentRequest{}
	payload.Contents = make([]struct {
		Parts []contentPart `json:"parts"`
	}, 1)
	payload.Contents[0].Parts = parts

	if req.AspectRatio != "" && req.AspectRatio != "Auto" {
		payload.GenerationConfig = map[string]any{
			"imageConfig": map[string]any{"aspectRatio": req.AspectRatio},
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, req.Model)

	body, err := a.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "malformed generateContent response", err)
	}

	if resp.Error != nil {
		return nil, &providers.Error{Provider: providers.ProviderGemini, Kind: providers.ErrorKindTransient, Message: resp.Error.Message}
	}

	// The multi-part response interleaves text and media; the image is the
	// first inline payload.
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				continue
			}

			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, providers.NewTransientError(providers.ProviderGemini, "invalid inline image payload", err)
			}

			return data, nil
		}
	}

	return nil, providers.NewTransientError(providers.ProviderGemini, "response contained no image data", nil)
}

type veoOperation struct {
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	Error    *apiError `json:"error"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

func (a *Adapter) generateVideo(ctx context.Context, req providers.Request) ([]byte, error) {
	instance := map[string]any{"prompt": req.Prompt}

	if len(req.Images) > 0 {
		instance["image"] = map[string]any{
			"bytesBase64Encoded": req.Images[0],
			"mimeType":           "image/png",
		}
	}

	if req.LastFrameBase64 != "" {
		instance["lastFrame"] = map[string]any{
			"bytesBase64Encoded": req.LastFrameBase64,
			"mimeType":           "image/png",
		}
	}

	parameters := map[string]any{}
	if req.AspectRatio != "" && req.AspectRatio != "Auto" {
		parameters["aspectRatio"] = req.AspectRatio
	}

	if req.Resolution != "" && req.Resolution != "Auto" {
		parameters["resolution"] = req.Resolution
	}

	if req.Duration > 0 {
		parameters["durationSeconds"] = req.Duration
	}

	payload := map[string]any{
		"instances":  []map[string]any{instance},
		"parameters": parameters,
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", a.baseURL, req.Model)

	body, err := a.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var op veoOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "malformed operation response", err)
	}

	if op.Name == "" {
		return nil, providers.NewTransientError(providers.ProviderGemini, "operation submit returned no name", nil)
	}

	uri, err := a.pollOperation(ctx, op.Name)
	if err != nil {
		return nil, err
	}

	return a.fetchVideo(ctx, uri)
}

func (a *Adapter) pollOperation(ctx context.Context, name string) (string, error) {
	deadline := time.Now().Add(videoPollBudget)
	ticker := time.NewTicker(videoPollInterval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", providers.NewTransientError(providers.ProviderGemini, "video generation interrupted", ctx.Err())
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return "", providers.NewTimeoutError(providers.ProviderGemini, "video generation timed out")
		}

		body, err := a.get(ctx, fmt.Sprintf("%s/%s", a.baseURL, name))
		if err != nil {
			return "", err
		}

		var op veoOperation
		if err := json.Unmarshal(body, &op); err != nil {
			return "", providers.NewTransientError(providers.ProviderGemini, "malformed operation poll response", err)
		}

		if !op.Done {
			continue
		}

		if op.Error != nil {
			return "", &providers.Error{Provider: providers.ProviderGemini, Kind: providers.ErrorKindTransient, Message: op.Error.Message}
		}

		if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
			return "", providers.NewTransientError(providers.ProviderGemini, "operation finished without a video sample", nil)
		}

		return op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI, nil
	}
}

// fetchVideo downloads the signed result URI. The API key travels as a query
// parameter on the download, not a header.
func (a *Adapter) fetchVideo(ctx context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "invalid video uri", err)
	}

	query := parsed.Query()
	query.Set("key", a.apiKey)
	parsed.RawQuery = query.Encode()

	return a.get(ctx, parsed.String())
}

func (a *Adapter) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.apiKey)

	return a.do(httpReq)
}

func (a *Adapter) get(ctx context.Context, endpoint string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "failed to create request", err)
	}

	httpReq.Header.Set("x-goog-api-key", a.apiKey)

	return a.do(httpReq)
}

func (a *Adapter) do(httpReq *http.Request) ([]byte, error) {
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "http request failed", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := providers.ErrorKindTransient
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			kind = providers.ErrorKindPermission
		}

		a.logger.Error("Gemini API returned non-OK status",
			"status_code", resp.StatusCode,
			"response_body", string(body),
		)

		return nil, &providers.Error{
			Provider: providers.ProviderGemini,
			Kind:     kind,
			Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if readErr != nil {
		return nil, providers.NewTransientError(providers.ProviderGemini, "failed to read response body", readErr)
	}

	return body, nil
}
