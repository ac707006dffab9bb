package ingest

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/doc-digitizer/internal/imaging"
)

// MaxFiles is the largest number of pages accepted in one selection
const MaxFiles = 3

// File is a user-selected file as received from the client
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Payload is an ingested page ready to be sent to a scanner
type Payload struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Base64    string `json:"-"`
	// Preview is a data URL the client can render directly
	Preview string `json:"preview"`
}

// ValidationError is returned when a selection cannot be processed at all
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the selection without reading or converting anything.
// The whole batch is rejected if any file is not allowed.
func Validate(files []File) error {
	if len(files) == 0 {
		return &ValidationError{Message: "No files were selected. Please choose up to 3 documents."}
	}
	if len(files) > MaxFiles {
		return &ValidationError{Message: "You can only upload up to 3 documents at a time."}
	}
	for _, f := range files {
		if !allowed(MediaType(f)) {
			return &ValidationError{Message: "Only images (JPG, PNG) and PDF files are allowed."}
		}
	}
	return nil
}

// Ingest validates the selection and converts each file to a payload, keeping selection order
func Ingest(files []File) ([]Payload, error) {
	if err := Validate(files); err != nil {
		return nil, err
	}

	payloads := make([]Payload, len(files))
	for i, f := range files {
		mediaType := MediaType(f)
		encoded := base64.StdEncoding.EncodeToString(f.Data)
		payloads[i] = Payload{
			Name:      f.Name,
			MediaType: mediaType,
			Base64:    encoded,
			Preview:   preview(f, mediaType, encoded),
		}
	}
	return payloads, nil
}

// Decode returns the raw bytes of a payload
func (p Payload) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Base64)
}

// MediaType resolves the media type of a file. A missing or generic declared
// type falls back to the extension and then to content sniffing.
func MediaType(f File) string {
	mediaType := imaging.NormalizeMediaType(f.MediaType)
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}

	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}

	if imaging.IsHEIC(f.Data, "") {
		return "image/heic"
	}
	return imaging.NormalizeMediaType(http.DetectContentType(f.Data))
}

func allowed(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

// preview builds a browser-renderable data URL. Formats browsers cannot show
// are rendered to PNG; a failed render yields an empty preview.
func preview(f File, mediaType, encoded string) string {
	switch {
	case mediaType == "application/pdf":
		pages, err := imaging.RenderPDF(f.Data, 1)
		if err != nil {
			slog.Warn("Failed to render PDF preview", "filename", f.Name, "error", err)
			return ""
		}
		return dataURL("image/png", base64.StdEncoding.EncodeToString(pages[0]))
	case imaging.IsHEIC(f.Data, mediaType):
		converted, err := imaging.ToPNG(f.Data, mediaType)
		if err != nil {
			slog.Warn("Failed to convert HEIC preview", "filename", f.Name, "error", err)
			return ""
		}
		return dataURL("image/png", base64.StdEncoding.EncodeToString(converted))
	default:
		return dataURL(mediaType, encoded)
	}
}

func dataURL(mediaType, encoded string) string {
	return "data:" + mediaType + ";base64," + encoded
}
