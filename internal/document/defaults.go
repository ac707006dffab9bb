package document

// DefaultConfig returns the built-in configuration for t
func DefaultConfig(t Type) (Config, error) {
	switch t {
	case BOM:
		return Config{
			Type:  BOM,
			Label: "Bill of Materials",
			Prompt: `You are an expert industrial transcriptionist. Analyze this handwritten Bill of Materials.
Extract: 'Part #' (partNumber), 'Description' (description), 'Qty' (quantity), 'Unit' (unit), 'Notes' (notes).
If handwriting is messy, use engineering context. Return empty string for missing fields.`,
			Columns: []Column{
				{Key: "partNumber", Label: "Part #", MinWidth: 120, Required: true},
				{Key: "description", Label: "Description", MinWidth: 250, Required: true},
				{Key: "quantity", Label: "Qty", MinWidth: 70, Required: true},
				{Key: "unit", Label: "Unit", MinWidth: 70},
				{Key: "notes", Label: "Notes", MinWidth: 200},
			},
		}, nil
	case Invoice:
		return Config{
			Type:  Invoice,
			Label: "Invoice",
			Prompt: `Analyze this invoice. Extract Vendor Name and line items into a table.
Fields: 'Vendor' (Vendor), 'Item Code' (itemCode), 'Description' (description), 'Quantity' (quantity), 'Unit Price' (unitPrice), 'Total' (total).
Ensure numeric values are formatted cleanly.`,
			Columns: []Column{
				{Key: "Vendor", Label: "Vendor", MinWidth: 120},
				{Key: "itemCode", Label: "Item Code", MinWidth: 120},
				{Key: "description", Label: "Description", MinWidth: 250, Required: true},
				{Key: "quantity", Label: "Qty", MinWidth: 80},
				{Key: "unitPrice", Label: "Unit Price", MinWidth: 100},
				{Key: "total", Label: "Total", MinWidth: 100, Required: true},
			},
		}, nil
	case PO:
		return Config{
			Type:  PO,
			Label: "Purchase Order",
			Prompt: `Analyze this Purchase Order. Extract items.
Fields: 'SKU' (sku), 'Description' (description), 'Quantity' (quantity), 'Unit Cost' (unitCost), 'Line Total' (lineTotal).`,
			Columns: []Column{
				{Key: "sku", Label: "SKU", MinWidth: 120},
				{Key: "description", Label: "Description", MinWidth: 250, Required: true},
				{Key: "quantity", Label: "Qty", MinWidth: 80, Required: true},
				{Key: "unitCost", Label: "Unit Cost", MinWidth: 100},
				{Key: "lineTotal", Label: "Total", MinWidth: 100, Required: true},
			},
		}, nil
	case Other:
		return Config{
			Type:  Other,
			Label: "Other Document",
			Prompt: `Analyze this document and extract tabular data.
Map columns to generic fields: col1, col2, col3, col4, notes.
Try to map the most important identifier to col1 and description to col2.`,
			Columns: []Column{
				{Key: "col1", Label: "Column 1", MinWidth: 120},
				{Key: "col2", Label: "Column 2", MinWidth: 150},
				{Key: "col3", Label: "Column 3", MinWidth: 120},
				{Key: "col4", Label: "Column 4", MinWidth: 120},
				{Key: "notes", Label: "Notes", MinWidth: 200},
			},
		}, nil
	}
	return Config{}, &ConfigurationError{Type: t, Reason: "no default configuration"}
}
