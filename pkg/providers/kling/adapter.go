// Package kling implements the Kling adapter. Image and video generation are
// both asynchronous task cycles: submit returns a task id which is polled
// until the task succeeds, fails, or the poll budget runs out.
package kling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vividlab/canvasflow/pkg/providers"
)

const (
	defaultBaseURL = "https://api-singapore.klingai.com"

	// MaxSubjectImages caps the multi-image composition path.
	MaxSubjectImages = 4

	imagePollInterval = 3 * time.Second
	imagePollBudget   = 120 * time.Second
	videoPollInterval = 5 * time.Second
	videoPollBudget   = 300 * time.Second
)

type Adapter struct {
	accessKey string
	secretKey string
	baseURL   string
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
}

func NewAdapter(accessKey, secretKey string, logger *slog.Logger) *Adapter {
	return &Adapter{
		accessKey: accessKey,
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.With("module", "kling_adapter"),
		now:       time.Now,
	}
}

func (a *Adapter) Generate(ctx context.Context, req providers.Request) ([]byte, error) {
	if a.accessKey == "" || a.secretKey == "" {
		return nil, providers.NewConfigError(providers.ProviderKling, "KLING_ACCESS_KEY / KLING_SECRET_KEY are not configured")
	}

	if req.Kind == providers.RequestKindVideo {
		return a.generateVideo(ctx, req)
	}

	return a.generateImage(ctx, req)
}

type submitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type taskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// generateImage submits a single-image or multi-image task. More than one
// subject image selects the dedicated multi-image endpoint, a separate task
// cycle, not a parameterization of the single-image path.
func (a *Adapter) generateImage(ctx context.Context, req providers.Request) ([]byte, error) {
	images := req.Images
	if len(images) > MaxSubjectImages {
		images = images[:MaxSubjectImages]
	}

	var (
		endpoint string
		payload  map[string]any
	)

	if len(images) > 1 {
		endpoint = "/v1/images/multi-image2image"

		subjects := make([]map[string]any, 0, len(images))
		for _, image := range images {
			subjects = append(subjects, map[string]any{"image": image})
		}

		payload = map[string]any{
			"model_name": req.Model,
			"prompt":     req.Prompt,
			"image_list": subjects,
		}
	} else {
		endpoint = "/v1/images/generations"
		payload = map[string]any{
			"model_name": req.Model,
			"prompt":     req.Prompt,
		}

		if len(images) == 1 {
			payload["image"] = images[0]
		}
	}

	if req.AspectRatio != "" && req.AspectRatio != "Auto" {
		payload["aspect_ratio"] = req.AspectRatio
	}

	taskID, err := a.submit(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	resultURL, err := a.pollTask(ctx, endpoint+"/"+taskID, imagePollInterval, imagePollBudget)
	if err != nil {
		return nil, err
	}

	return a.download(ctx, resultURL)
}

func (a *Adapter) generateVideo(ctx context.Context, req providers.Request) ([]byte, error) {
	endpoint := "/v1/videos/text2video"
	payload := map[string]any{
		"model_name": req.Model,
		"prompt":     req.Prompt,
	}

	if len(req.Images) > 0 {
		endpoint = "/v1/videos/image2video"
		payload["image"] = req.Images[0]
	}

	if req.AspectRatio != "" && req.AspectRatio != "Auto" {
		payload["aspect_ratio"] = req.AspectRatio
	}

	if req.Duration > 0 {
		payload["duration"] = fmt.Sprintf("%d", req.Duration)
	}

	taskID, err := a.submit(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	resultURL, err := a.pollTask(ctx, endpoint+"/"+taskID, videoPollInterval, videoPollBudget)
	if err != nil {
		return nil, err
	}

	return a.download(ctx, resultURL)
}

func (a *Adapter) submit(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	body, err := a.request(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewTransientError(providers.ProviderKling, "malformed submit response", err)
	}

	if resp.Code != 0 {
		return "", &providers.Error{Provider: providers.ProviderKling, Kind: providers.ErrorKindTransient, Message: resp.Message}
	}

	if resp.Data.TaskID == "" {
		return "", providers.NewTransientError(providers.ProviderKling, "submit returned no task id", nil)
	}

	return resp.Data.TaskID, nil
}

func (a *Adapter) pollTask(ctx context.Context, statusPath string, interval, budget time.Duration) (string, error) {
	deadline := a.now().Add(budget)
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", providers.NewTransientError(providers.ProviderKling, "generation interrupted", ctx.Err())
		case <-ticker.C:
		}

		if a.now().After(deadline) {
			return "", providers.NewTimeoutError(providers.ProviderKling, "task polling timed out")
		}

		body, err := a.request(ctx, http.MethodGet, statusPath, nil)
		if err != nil {
			return "", err
		}

		var resp taskResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", providers.NewTransientError(providers.ProviderKling, "malformed task response", err)
		}

		switch resp.Data.TaskStatus {
		case "succeed":
			if len(resp.Data.TaskResult.Images) > 0 {
				return resp.Data.TaskResult.Images[0].URL, nil
			}

			if len(resp.Data.TaskResult.Videos) > 0 {
				return resp.Data.TaskResult.Videos[0].URL, nil
			}

			return "", providers.NewTransientError(providers.ProviderKling, "task succeeded without a result", nil)
		case "failed":
			message := resp.Data.TaskStatusMsg
			if message == "" {
				message = "task failed"
			}

			return "", &providers.Error{Provider: providers.ProviderKling, Kind: providers.ErrorKindTransient, Message: message}
		default:
			// submitted / processing, keep polling
		}
	}
}

func (a *Adapter) request(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reader io.Reader

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, providers.NewTransientError(providers.ProviderKling, "failed to marshal request", err)
		}

		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "failed to create request", err)
	}

	token, err := bearerToken(a.accessKey, a.secretKey, a.now())
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "failed to sign bearer token", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "http request failed", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := providers.ErrorKindTransient
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			kind = providers.ErrorKindPermission
		}

		a.logger.Error("Kling API returned non-OK status",
			"status_code", resp.StatusCode,
			"path", path,
		)

		return nil, &providers.Error{
			Provider: providers.ProviderKling,
			Kind:     kind,
			Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if readErr != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "failed to read response body", readErr)
	}

	return body, nil
}

func (a *Adapter) download(ctx context.Context, resultURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "failed to create download request", err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderKling, "result download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providers.NewTransientError(providers.ProviderKling,
			fmt.Sprintf("result download returned status %d", resp.StatusCode), nil)
	}

	return io.ReadAll(resp.Body)
}
