package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a new Gemini Scanner instance. An empty apiKey is not an
// error here: the scanner is created unconfigured and every Transcribe call
// returns ErrMissingAPIKey.
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}
	if apiKey == "" {
		return &Gemini{modelName: modelName}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		modelName: modelName,
	}, nil
}

// Transcribe sends all pages as inline data with a schema-constrained JSON response
func (g *Gemini) Transcribe(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}

	// A model per call keeps the generation config local to this request
	model := g.client.GenerativeModel(g.modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = geminiSchema(req.Columns)
	model.SetTemperature(req.Temperature)

	parts := make([]genai.Part, 0, len(req.Pages)+1)
	for _, page := range req.Pages {
		parts = append(parts, genai.Blob{MIMEType: page.MediaType, Data: page.Data})
	}
	parts = append(parts, genai.Text(req.Instruction))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return CleanJSON(responseText.String()), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
