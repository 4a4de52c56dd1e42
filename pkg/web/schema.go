package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// workflowSchema is the shape an imported workflow document must satisfy
// before it reaches the service layer. It validates structure only; status
// and result fields are accepted as-is so exported canvases round-trip.
const workflowSchema = `{
	"type": "object",
	"required": ["title", "nodes"],
	"properties": {
		"id": {"type": "string"},
		"title": {"type": "string", "minLength": 1},
		"coverUrl": {"type": "string"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"type": {
						"type": "string",
						"enum": ["text", "image", "video", "audio", "image-editor", "storyboard-manager"]
					},
					"position": {
						"type": "object",
						"properties": {
							"x": {"type": "number"},
							"y": {"type": "number"}
						}
					},
					"prompt": {"type": "string"},
					"status": {
						"type": "string",
						"enum": ["idle", "loading", "success", "error"]
					},
					"parentId": {"type": "string"},
					"parentIds": {"type": "array", "items": {"type": "string"}},
					"duration": {"type": "integer"}
				}
			}
		},
		"groups": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "nodeIds"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"title": {"type": "string"},
					"nodeIds": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// ValidateWorkflowDocument validates a raw workflow JSON document against
// the workflow schema.
func ValidateWorkflowDocument(document []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(workflowSchema)
	dataLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("invalid workflow document: %w", err)
	}

	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			descriptions = append(descriptions, desc.String())
		}

		return fmt.Errorf("workflow validation errors: %s", strings.Join(descriptions, "; "))
	}

	return nil
}
