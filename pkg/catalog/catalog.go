// Package catalog lists the generation models the API can route to.
package catalog

import "github.com/vividlab/canvasflow/pkg/providers"

type Model struct {
	ID       string             `json:"id"`
	Label    string             `json:"label"`
	Provider providers.Provider `json:"provider"`
	Kind     string             `json:"kind"`
}

// Models returns the supported model catalog, grouped image first.
// The IDs are the exact strings the dispatcher routes on.
func Models() []Model {
	return []Model{
		{ID: "gemini-2.5-flash-image", Label: "Nano Banana", Provider: providers.ProviderGemini, Kind: "image"},
		{ID: "gemini-3-pro-image-preview", Label: "Nano Banana Pro", Provider: providers.ProviderGemini, Kind: "image"},
		{ID: "gpt-image-1", Label: "GPT Image", Provider: providers.ProviderOpenAI, Kind: "image"},
		{ID: "kling-v2", Label: "Kling Image", Provider: providers.ProviderKling, Kind: "image"},

		{ID: "veo-3.1-fast", Label: "Veo 3.1 Fast", Provider: providers.ProviderGemini, Kind: "video"},
		{ID: "veo-3.1", Label: "Veo 3.1", Provider: providers.ProviderGemini, Kind: "video"},
		{ID: "kling-v2-1-master", Label: "Kling 2.1 Master", Provider: providers.ProviderKling, Kind: "video"},
		{ID: "hailuo-02", Label: "Hailuo 02", Provider: providers.ProviderHailuo, Kind: "video"},
	}
}
