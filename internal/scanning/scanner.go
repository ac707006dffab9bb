package scanning

import (
	"context"
	"errors"

	"github.com/zombor/doc-digitizer/internal/document"
)

// ErrMissingAPIKey is returned when a scanner is used without credentials
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Page is one page of a document as raw bytes
type Page struct {
	MediaType string
	Data      []byte
}

// Request describes one transcription call
type Request struct {
	// Pages in document order
	Pages []Page
	// Columns define the structured-output schema; every field is text
	Columns []document.Column
	// Instruction is the full prompt sent alongside the pages
	Instruction string
	Temperature float32
}

// Scanner defines the interface for document transcription operations
type Scanner interface {
	// Transcribe sends the pages to the model and returns its raw JSON text.
	// An empty string means the model produced no output.
	Transcribe(ctx context.Context, req Request) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
