// Package hailuo implements the Hailuo video adapter. It follows the same
// asynchronous submit/poll shape as Kling with plain API-key auth and its own
// duration defaults.
package hailuo

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
	defaultBaseURL = "https://api.minimax.io"

	// DefaultDuration is used when the node setting is zero.
	DefaultDuration = 6

	pollInterval = 5 * time.Second
	pollBudget   = 300 * time.Second
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
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("module", "hailuo_adapter"),
	}
}

type submitResponse struct {
	TaskID   string `json:"task_id"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

type statusResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"` // Queueing / Processing / Success / Fail
	FileID   string `json:"file_id"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

type fileResponse struct {
	File struct {
		DownloadURL string `json:"download_url"`
	} `json:"file"`
}

func (a *Adapter) Generate(ctx context.Context, req providers.Request) ([]byte, error) {
	if a.apiKey == "" {
		return nil, providers.NewConfigError(providers.ProviderHailuo, "HAILUO_API_KEY is not configured")
	}

	duration := req.Duration
	if duration == 0 {
		duration = DefaultDuration
	}

	payload := map[string]any{
		"model":    req.Model,
		"prompt":   req.Prompt,
		"duration": duration,
	}

	if len(req.Images) > 0 {
		payload["first_frame_image"] = "data:image/png;base64," + req.Images[0]
	}

	if req.Resolution != "" && req.Resolution != "Auto" {
		payload["resolution"] = req.Resolution
	}

	taskID, err := a.submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	fileID, err := a.poll(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return a.retrieve(ctx, fileID)
}

func (a *Adapter) submit(ctx context.Context, payload map[string]any) (string, error) {
	body, err := a.request(ctx, http.MethodPost, "/v1/video_generation", payload)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewTransientError(providers.ProviderHailuo, "malformed submit response", err)
	}

	if resp.BaseResp.StatusCode != 0 {
		return "", &providers.Error{Provider: providers.ProviderHailuo, Kind: providers.ErrorKindTransient, Message: resp.BaseResp.StatusMsg}
	}

	if resp.TaskID == "" {
		return "", providers.NewTransientError(providers.ProviderHailuo, "submit returned no task id", nil)
	}

	return resp.TaskID, nil
}

func (a *Adapter) poll(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(pollBudget)
	ticker := time.NewTicker(pollInterval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", providers.NewTransientError(providers.ProviderHailuo, "generation interrupted", ctx.Err())
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return "", providers.NewTimeoutError(providers.ProviderHailuo, "task polling timed out")
		}

		body, err := a.request(ctx, http.MethodGet, "/v1/query/video_generation?task_id="+taskID, nil)
		if err != nil {
			return "", err
		}

		var resp statusResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", providers.NewTransientError(providers.ProviderHailuo, "malformed status response", err)
		}

		switch resp.Status {
		case "Success":
			if resp.FileID == "" {
				return "", providers.NewTransientError(providers.ProviderHailuo, "task succeeded without a file id", nil)
			}

			return resp.FileID, nil
		case "Fail":
			message := resp.BaseResp.StatusMsg
			if message == "" {
				message = "task failed"
			}

			return "", &providers.Error{Provider: providers.ProviderHailuo, Kind: providers.ErrorKindTransient, Message: message}
		default:
			// Queueing / Preparing / Processing, keep polling
		}
	}
}

func (a *Adapter) retrieve(ctx context.Context, fileID string) ([]byte, error) {
	body, err := a.request(ctx, http.MethodGet, "/v1/files/retrieve?file_id="+fileID, nil)
	if err != nil {
		return nil, err
	}

	var resp fileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "malformed file response", err)
	}

	if resp.File.DownloadURL == "" {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "file retrieve returned no download url", nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, resp.File.DownloadURL, nil)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "failed to create download request", err)
	}

	download, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "result download failed", err)
	}
	defer download.Body.Close()

	if download.StatusCode != http.StatusOK {
		return nil, providers.NewTransientError(providers.ProviderHailuo,
			fmt.Sprintf("result download returned status %d", download.StatusCode), nil)
	}

	return io.ReadAll(download.Body)
}

func (a *Adapter) request(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reader io.Reader

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, providers.NewTransientError(providers.ProviderHailuo, "failed to marshal request", err)
		}

		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "failed to create request", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "http request failed", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := providers.ErrorKindTransient
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			kind = providers.ErrorKindPermission
		}

		a.logger.Error("Hailuo API returned non-OK status",
			"status_code", resp.StatusCode,
			"path", path,
		)

		return nil, &providers.Error{
			Provider: providers.ProviderHailuo,
			Kind:     kind,
			Message:  fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	if readErr != nil {
		return nil, providers.NewTransientError(providers.ProviderHailuo, "failed to read response body", readErr)
	}

	return body, nil
}
