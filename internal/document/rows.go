package document

import (
	"encoding/json"
	"fmt"
)

// Row is the typed form of one extracted line for a specific document type
type Row interface {
	DocumentType() Type
	// Fields flattens the row into column key/value pairs
	Fields() map[string]string
}

type BOMRow struct {
	PartNumber  string `json:"partNumber"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	Notes       string `json:"notes"`
}

func (r *BOMRow) DocumentType() Type { return BOM }

func (r *BOMRow) Fields() map[string]string {
	return map[string]string{
		"partNumber":  r.PartNumber,
		"description": r.Description,
		"quantity":    r.Quantity,
		"unit":        r.Unit,
		"notes":       r.Notes,
	}
}

type InvoiceRow struct {
	Vendor      string `json:"Vendor"`
	ItemCode    string `json:"itemCode"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Total       string `json:"total"`
}

func (r *InvoiceRow) DocumentType() Type { return Invoice }

func (r *InvoiceRow) Fields() map[string]string {
	return map[string]string{
		"Vendor":      r.Vendor,
		"itemCode":    r.ItemCode,
		"description": r.Description,
		"quantity":    r.Quantity,
		"unitPrice":   r.UnitPrice,
		"total":       r.Total,
	}
}

type PORow struct {
	SKU         string `json:"sku"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitCost    string `json:"unitCost"`
	LineTotal   string `json:"lineTotal"`
}

func (r *PORow) DocumentType() Type { return PO }

func (r *PORow) Fields() map[string]string {
	return map[string]string{
		"sku":         r.SKU,
		"description": r.Description,
		"quantity":    r.Quantity,
		"unitCost":    r.UnitCost,
		"lineTotal":   r.LineTotal,
	}
}

type OtherRow struct {
	Col1  string `json:"col1"`
	Col2  string `json:"col2"`
	Col3  string `json:"col3"`
	Col4  string `json:"col4"`
	Notes string `json:"notes"`
}

func (r *OtherRow) DocumentType() Type { return Other }

func (r *OtherRow) Fields() map[string]string {
	return map[string]string{
		"col1":  r.Col1,
		"col2":  r.Col2,
		"col3":  r.Col3,
		"col4":  r.Col4,
		"notes": r.Notes,
	}
}

// NewRow returns an empty row variant for t
func NewRow(t Type) (Row, error) {
	switch t {
	case BOM:
		return &BOMRow{}, nil
	case Invoice:
		return &InvoiceRow{}, nil
	case PO:
		return &PORow{}, nil
	case Other:
		return &OtherRow{}, nil
	}
	return nil, &ConfigurationError{Type: t, Reason: "no row type"}
}

// DecodeRow decodes a single JSON object into the row variant for t.
// Unknown properties are ignored.
func DecodeRow(t Type, data []byte) (Row, error) {
	row, err := NewRow(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, row); err != nil {
		return nil, fmt.Errorf("decoding %s row: %w", t, err)
	}
	return row, nil
}
