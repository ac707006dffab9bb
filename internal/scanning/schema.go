package scanning

import (
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/zombor/doc-digitizer/internal/document"
)

// JSONSchema returns the JSON Schema for an array of rows with one string
// property per column
func JSONSchema(columns []document.Column) map[string]any {
	properties := make(map[string]any, len(columns))
	required := make([]string, 0, len(columns))
	for _, col := range columns {
		properties[col.Key] = map[string]any{"type": "string"}
		if col.Required {
			required = append(required, col.Key)
		}
	}

	item := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		item["required"] = required
	}

	return map[string]any{
		"type":  "array",
		"items": item,
	}
}

// geminiSchema is the genai equivalent of JSONSchema
func geminiSchema(columns []document.Column) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(columns))
	var required []string
	for _, col := range columns {
		properties[col.Key] = &genai.Schema{Type: genai.TypeString}
		if col.Required {
			required = append(required, col.Key)
		}
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   required,
		},
	}
}

// CleanJSON trims whitespace and markdown code fences around model output
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
