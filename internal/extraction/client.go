package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/ingest"
	"github.com/zombor/doc-digitizer/internal/scanning"
)

// consolidateDirective is appended to every configured prompt
const consolidateDirective = `Analyze ALL provided images/pages as a single logical document. Consolidate the data into one table.
Return the result strictly as a JSON array matching the schema provided.
Ensure all values are strings. If a field is missing, use an empty string.`

// Temperature keeps transcription close to deterministic
const Temperature float32 = 0.1

// Client turns ingested pages into extracted items using a Scanner
type Client struct {
	scanner     scanning.Scanner
	idGenerator document.IDGenerator
}

// NewClient creates a Client that assigns UUIDs to items
func NewClient(scanner scanning.Scanner) *Client {
	return NewClientWithDeps(scanner, document.UUIDGenerator{})
}

// NewClientWithDeps creates a Client with a custom ID generator for testing
func NewClientWithDeps(scanner scanning.Scanner, idGen document.IDGenerator) *Client {
	return &Client{
		scanner:     scanner,
		idGenerator: idGen,
	}
}

// Instruction combines a configured prompt with the consolidation directive
func Instruction(prompt string) string {
	return prompt + "\n\n" + consolidateDirective
}

// Transcribe makes a single call to the scanner. An empty model response
// yields an empty slice. Any failure returns no items at all.
func (c *Client) Transcribe(ctx context.Context, payloads []ingest.Payload, docType document.Type, instruction string) ([]document.Item, error) {
	cfg, err := document.DefaultConfig(docType)
	if err != nil {
		return nil, &ConfigurationError{Message: err.Error(), Err: err}
	}

	pages := make([]scanning.Page, len(payloads))
	for i, p := range payloads {
		data, err := p.Decode()
		if err != nil {
			return nil, c.fail(docType, fmt.Errorf("decoding page %d: %w", i+1, err))
		}
		pages[i] = scanning.Page{MediaType: p.MediaType, Data: data}
	}

	text, err := c.scanner.Transcribe(ctx, scanning.Request{
		Pages:       pages,
		Columns:     cfg.Columns,
		Instruction: Instruction(instruction),
		Temperature: Temperature,
	})
	if errors.Is(err, scanning.ErrMissingAPIKey) {
		slog.Error("Scanner is not configured", "error", err)
		return nil, &ConfigurationError{
			Message: "The AI service is not configured. Set GEMINI_API_KEY and restart.",
			Err:     err,
		}
	}
	if err != nil {
		return nil, c.fail(docType, err)
	}

	items, err := c.parse(cfg, scanning.CleanJSON(text))
	if err != nil {
		return nil, c.fail(docType, err)
	}
	return items, nil
}

func (c *Client) fail(docType document.Type, err error) error {
	slog.Error("Failed to transcribe document", "doc_type", docType, "error", err)
	return &Error{Message: FailureMessage, Err: err}
}

// parse validates the response against the row schema and decodes each
// element into the typed row for the document type
func (c *Client) parse(cfg document.Config, text string) ([]document.Item, error) {
	if text == "" {
		return []document.Item{}, nil
	}

	data, err := normalizeScalars([]byte(text))
	if err != nil {
		return nil, err
	}
	if err := validate(cfg.Columns, data); err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("unmarshaling rows: %w", err)
	}

	items := make([]document.Item, 0, len(elements))
	for _, element := range elements {
		row, err := document.DecodeRow(cfg.Type, element)
		if err != nil {
			return nil, err
		}
		items = append(items, document.Item{
			ID:     c.idGenerator.Generate(),
			Fields: row.Fields(),
		})
	}
	return items, nil
}

// normalizeScalars rewrites null values to "" and number or boolean values to
// their text form in each row object. Nested values are left for the schema to reject.
func normalizeScalars(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unmarshal response: trailing data after JSON value")
	}

	rows, ok := v.([]any)
	if !ok {
		return data, nil
	}
	for _, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			continue
		}
		for k, value := range fields {
			switch value := value.(type) {
			case nil:
				fields[k] = ""
			case json.Number:
				fields[k] = value.String()
			case bool:
				fields[k] = strconv.FormatBool(value)
			}
		}
	}

	out, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal normalized response: %w", err)
	}
	return out, nil
}

func validate(columns []document.Column, data []byte) error {
	b, err := json.Marshal(scanning.JSONSchema(columns))
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rows.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rows.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
