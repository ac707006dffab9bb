package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Type identifies one of the supported document categories
type Type string

const (
	BOM     Type = "BOM"
	Invoice Type = "INVOICE"
	PO      Type = "PO"
	Other   Type = "OTHER"
)

// Types returns every document type in display order
func Types() []Type {
	return []Type{BOM, Invoice, PO, Other}
}

// ParseType converts a string such as "bom" or "INVOICE" to a Type
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case BOM, Invoice, PO, Other:
		return t, nil
	}
	return "", fmt.Errorf("unknown document type: %q", s)
}

// Column describes one column of the extracted table
type Column struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	MinWidth int    `json:"min_width"`
	Required bool   `json:"required,omitempty"`
}

// Config holds everything needed to extract and display one document type
type Config struct {
	Type    Type     `json:"type"`
	Label   string   `json:"label"`
	Prompt  string   `json:"prompt"`
	Columns []Column `json:"columns"`
}

// Keys returns the column keys in display order
func (c Config) Keys() []string {
	keys := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		keys[i] = col.Key
	}
	return keys
}

// Item is a single extracted row. It serializes to a flat JSON object:
// the "id" property plus one string property per field.
type Item struct {
	ID     string
	Fields map[string]string
}

// Get returns the value for key, or "" when it is missing
func (i Item) Get(key string) string {
	return i.Fields[key]
}

// Clone returns a deep copy of the item
func (i Item) Clone() Item {
	fields := make(map[string]string, len(i.Fields))
	for k, v := range i.Fields {
		fields[k] = v
	}
	return Item{ID: i.ID, Fields: fields}
}

// CloneItems deep copies a slice of items
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

// MarshalJSON writes the item as a flat object with sorted keys
func (i Item) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(i.Fields))
	for k := range i.Fields {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`{"id":`)
	id, err := json.Marshal(i.ID)
	if err != nil {
		return nil, err
	}
	b.Write(id)
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(i.Fields[k])
		if err != nil {
			return nil, err
		}
		b.WriteByte(',')
		b.Write(name)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON reads a flat object. Non-string values are kept in their
// JSON text form so nothing the model returned is silently dropped.
func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.Fields = make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			if string(v) == "null" {
				s = ""
			} else {
				s = string(v)
			}
		}
		if k == "id" {
			i.ID = s
			continue
		}
		i.Fields[k] = s
	}
	return nil
}

// IDGenerator generates unique IDs for items and history entries
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random (version 4) UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
