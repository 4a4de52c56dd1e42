package models

import (
	"encoding/json"
	"time"
)

// AssetKind distinguishes the two library directories results persist into.
type AssetKind string

const (
	AssetKindImages AssetKind = "images"
	AssetKindVideos AssetKind = "videos"
)

// ImageList carries base64-encoded subject images. Clients send either a
// single string or an array of strings on the wire; both decode into the
// list form.
type ImageList []string

func (l *ImageList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}

		*l = ImageList{single}

		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	*l = many

	return nil
}

// GenerationRequest is the client-facing payload that starts a generation
// for one node. The node id doubles as the job id so results stay
// recoverable after a disconnect.
type GenerationRequest struct {
	NodeID          string    `json:"nodeId"             validate:"required"`
	Prompt          string    `json:"prompt"`
	AspectRatio     string    `json:"aspectRatio,omitempty"`
	Resolution      string    `json:"resolution,omitempty"`
	Duration        int       `json:"duration,omitempty"`
	ImageBase64     ImageList `json:"imageBase64,omitempty"`
	LastFrameBase64 string    `json:"lastFrameBase64,omitempty"`
	// MotionReferenceURL is accepted for wire compatibility with the canvas
	// client; no current provider consumes a motion reference.
	MotionReferenceURL string `json:"motionReferenceUrl,omitempty"`
	ImageModel         string `json:"imageModel,omitempty"`
	VideoModel         string `json:"videoModel,omitempty"`
}

// GenerationResponse is returned once the provider call finished and the
// result was persisted.
type GenerationResponse struct {
	ResultURL string `json:"resultUrl"`
}

// GenerationStatus reports whether a persisted result exists for a node id.
// "pending" means nothing was found, not that the job failed.
type GenerationStatus struct {
	Status    string    `json:"status"` // "success" or "pending"
	ResultURL string    `json:"resultUrl,omitempty"`
	Type      AssetKind `json:"type,omitempty"`
}

// AssetMetadata is the sidecar document written next to every persisted
// result, same base name as the binary file.
type AssetMetadata struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	Type      AssetKind `json:"type"`
}
