package hailuo

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vividlab/canvasflow/pkg/providers"
)

type fakeHailuo struct {
	*httptest.Server

	submitPayload map[string]any
	status        string
	statusMsg     string
}

func newFakeHailuo(t *testing.T) *fakeHailuo {
	t.Helper()

	f := &fakeHailuo{status: "Success"}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/video_generation":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.submitPayload))

			_ = json.NewEncoder(w).Encode(map[string]any{"task_id": "task-1"})
		case r.URL.Path == "/v1/query/video_generation":
			assert.Equal(t, "task-1", r.URL.Query().Get("task_id"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"task_id":   "task-1",
				"status":    f.status,
				"file_id":   "file-1",
				"base_resp": map[string]any{"status_code": 0, "status_msg": f.statusMsg},
			})
		case r.URL.Path == "/v1/files/retrieve":
			assert.Equal(t, "file-1", r.URL.Query().Get("file_id"))

			_ = json.NewEncoder(w).Encode(map[string]any{
				"file": map[string]any{"download_url": "http://" + r.Host + "/download"},
			})
		case r.URL.Path == "/download":
			_, _ = w.Write([]byte("video-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)

	return f
}

func newTestAdapter(baseURL string) *Adapter {
	a := NewAdapter("test-key", slog.Default())
	a.baseURL = baseURL

	return a
}

func TestGenerate_SubmitPollRetrieve(t *testing.T) {
	fake := newFakeHailuo(t)
	adapter := newTestAdapter(fake.URL)

	data, err := adapter.Generate(context.Background(), providers.Request{
		Kind:       providers.RequestKindVideo,
		Model:      "hailuo-02",
		Prompt:     "a storm over the sea",
		Images:     []string{"aW1hZ2U="},
		Resolution: "1080P",
		Duration:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("video-bytes"), data)
	assert.Equal(t, "hailuo-02", fake.submitPayload["model"])
	assert.Equal(t, "data:image/png;base64,aW1hZ2U=", fake.submitPayload["first_frame_image"])
	assert.Equal(t, "1080P", fake.submitPayload["resolution"])
	assert.EqualValues(t, 10, fake.submitPayload["duration"])
}

func TestGenerate_DurationDefault(t *testing.T) {
	fake := newFakeHailuo(t)
	adapter := newTestAdapter(fake.URL)

	_, err := adapter.Generate(context.Background(), providers.Request{
		Kind:   providers.RequestKindVideo,
		Model:  "hailuo-02",
		Prompt: "a storm over the sea",
	})
	require.NoError(t, err)

	assert.EqualValues(t, DefaultDuration, fake.submitPayload["duration"])
	assert.NotContains(t, fake.submitPayload, "first_frame_image")
	assert.NotContains(t, fake.submitPayload, "resolution")
}

func TestGenerate_TaskFailure(t *testing.T) {
	fake := newFakeHailuo(t)
	fake.status = "Fail"
	fake.statusMsg = "content policy violation"

	adapter := newTestAdapter(fake.URL)

	_, err := adapter.Generate(context.Background(), providers.Request{
		Kind:   providers.RequestKindVideo,
		Model:  "hailuo-02",
		Prompt: "a storm over the sea",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy violation")
}

func TestGenerate_PermissionStatusMapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	adapter := newTestAdapter(server.URL)

	_, err := adapter.Generate(context.Background(), providers.Request{
		Kind:   providers.RequestKindVideo,
		Model:  "hailuo-02",
		Prompt: "a storm over the sea",
	})
	require.Error(t, err)

	var typed *providers.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, providers.ErrorKindPermission, typed.Kind)
}

func TestGenerate_MissingAPIKey(t *testing.T) {
	adapter := NewAdapter("", slog.Default())

	_, err := adapter.Generate(context.Background(), providers.Request{Prompt: "anything"})
	require.Error(t, err)

	var typed *providers.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, providers.ErrorKindConfig, typed.Kind)
}
