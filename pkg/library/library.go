// Package library is the content library: it resolves opaque image
// references into raw bytes for outbound provider calls and persists
// generated media with metadata sidecars keyed by node id.
package library

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/vividlab/canvasflow/pkg/models"
)

// ErrAssetNotFound indicates no persisted result exists for an id.
var ErrAssetNotFound = errors.New("asset not found")

const publicPrefix = "/library/assets"

// Library stores generated media under root/images and root/videos, plus
// workflow cover assets. The store is append-mostly; ids are unique per job
// so concurrent writes never collide.
type Library struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) (*Library, error) {
	if root == "" {
		return nil, errors.New("library root is not configured")
	}

	for _, kind := range []models.AssetKind{models.AssetKindImages, models.AssetKindVideos} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0750); err != nil {
			return nil, fmt.Errorf("failed to create library directory %s: %w", kind, err)
		}
	}

	return &Library{root: root, logger: logger.With("module", "library")}, nil
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// ResolveToBytes converts an image reference, a data URI or a library URL,
// into raw bytes.
func (l *Library) ResolveToBytes(ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		idx := strings.Index(ref, ",")
		if idx < 0 {
			return nil, errors.New("malformed data URI")
		}

		data, err := base64.StdEncoding.DecodeString(ref[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URI: %w", err)
		}

		return data, nil
	case strings.HasPrefix(ref, publicPrefix+"/"):
		rel := strings.TrimPrefix(ref, publicPrefix+"/")

		filePath := filepath.Clean(filepath.Join(l.root, rel))
		if !strings.HasPrefix(filePath, filepath.Clean(l.root)+string(os.PathSeparator)) {
			return nil, errors.New("reference escapes the library root")
		}

		data, err := os.ReadFile(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrAssetNotFound
			}

			return nil, fmt.Errorf("failed to read library asset: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("unsupported image reference %q", truncate(ref, 64))
	}
}

// ResolveToBase64 resolves a reference and re-encodes it for outbound
// provider payloads.
func (l *Library) ResolveToBase64(ref string) (string, error) {
	data, err := l.ResolveToBytes(ref)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// Persist writes media bytes under the kind directory using the node id as
// the stable file identity and writes the metadata sidecar next to it. It
// returns the public URL of the stored asset. Re-persisting the same id
// overwrites in place, which keeps recovery idempotent.
func (l *Library) Persist(data []byte, kind models.AssetKind, id string, meta models.AssetMetadata) (string, error) {
	filename := id + extensionFor(kind, data)
	filePath := filepath.Join(l.root, string(kind), filename)

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save asset %s: %w", id, err)
	}

	meta.ID = id
	meta.Filename = filename
	meta.Type = kind

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata for %s: %w", id, err)
	}

	sidecarPath := strings.TrimSuffix(filePath, path.Ext(filePath)) + ".json"
	if err := os.WriteFile(sidecarPath, sidecar, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata for %s: %w", id, err)
	}

	l.logger.Info("Asset persisted", "id", id, "kind", kind, "bytes", len(data))

	return publicPrefix + "/" + string(kind) + "/" + filename, nil
}

// Lookup reports whether a persisted result exists for the given id. The id
// is the node id the dispatcher used when saving, so a completed job is
// findable even if the request that started it never saw its response.
func (l *Library) Lookup(id string) (*models.GenerationStatus, error) {
	for _, kind := range []models.AssetKind{models.AssetKindImages, models.AssetKindVideos} {
		matches, err := filepath.Glob(filepath.Join(l.root, string(kind), id+".*"))
		if err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}

		for _, match := range matches {
			if strings.HasSuffix(match, ".json") {
				continue
			}

			return &models.GenerationStatus{
				Status:    "success",
				ResultURL: publicPrefix + "/" + string(kind) + "/" + filepath.Base(match),
				Type:      kind,
			}, nil
		}
	}

	return &models.GenerationStatus{Status: "pending"}, nil
}

// Assets lists the metadata sidecars for one kind, newest first by file
// order left to the caller.
func (l *Library) Assets(kind models.AssetKind) ([]*models.AssetMetadata, error) {
	matches, err := filepath.Glob(filepath.Join(l.root, string(kind), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	assets := make([]*models.AssetMetadata, 0, len(matches))

	for _, match := range matches {
		body, err := os.ReadFile(match)
		if err != nil {
			l.logger.Warn("Failed to read sidecar", "path", match, "error", err)

			continue
		}

		var meta models.AssetMetadata
		if err := json.Unmarshal(body, &meta); err != nil {
			l.logger.Warn("Failed to parse sidecar", "path", match, "error", err)

			continue
		}

		assets = append(assets, &meta)
	}

	return assets, nil
}

// AssetPath maps a public library URL to its path on disk.
func (l *Library) AssetPath(ref string) (string, error) {
	if !strings.HasPrefix(ref, publicPrefix+"/") {
		return "", fmt.Errorf("not a library reference: %q", truncate(ref, 64))
	}

	rel := strings.TrimPrefix(ref, publicPrefix+"/")

	filePath := filepath.Clean(filepath.Join(l.root, rel))
	if !strings.HasPrefix(filePath, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", errors.New("reference escapes the library root")
	}

	return filePath, nil
}

func extensionFor(kind models.AssetKind, data []byte) string {
	if kind == models.AssetKindVideos {
		return ".mp4"
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
