package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// MaxPDFPages caps how many pages RenderPDF will rasterize
const MaxPDFPages = 10

// RenderPDF renders up to limit pages of a PDF to PNG images, in page order
func RenderPDF(pdfData []byte, limit int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if limit > 0 && n > limit {
		n = limit
	}
	if n == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		encoded, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, encoded)
	}
	return pages, nil
}

// ToPNG converts any supported image format (JPEG, GIF, PNG, HEIC, HEIF) to PNG
func ToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Go's standard image package doesn't support HEIC
	if IsHEIC(imageData, mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	return encodePNG(img)
}

// ToPNGPages normalizes a document to one PNG per page. PNG input is returned as-is.
func ToPNGPages(data []byte, mimeType string) ([][]byte, error) {
	mimeType = NormalizeMediaType(mimeType)
	switch {
	case mimeType == "application/pdf":
		return RenderPDF(data, MaxPDFPages)
	case mimeType == "image/png" && !IsHEIC(data, mimeType):
		return [][]byte{data}, nil
	default:
		converted, err := ToPNG(data, mimeType)
		if err != nil {
			return nil, err
		}
		return [][]byte{converted}, nil
	}
}

// IsHEIC reports whether the data or its MIME type indicates HEIC/HEIF
func IsHEIC(data []byte, mimeType string) bool {
	mimeType = NormalizeMediaType(mimeType)
	if strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		return true
	}
	// ftyp box at offset 4 followed by a HEIC-family brand
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heix", "heif", "mif1", "msf1":
			return true
		}
	}
	return false
}

// NormalizeMediaType lowercases a MIME type and drops any parameters
func NormalizeMediaType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
