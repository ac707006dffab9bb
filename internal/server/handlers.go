package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/ingest"
	"github.com/zombor/doc-digitizer/internal/session"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// writeSessionError maps session errors to status codes
func writeSessionError(w http.ResponseWriter, err error) {
	var vErr *ingest.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotIdle), errors.Is(err, session.ErrNotEditable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrItemNotFound), errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// handleListDocTypes returns the configs in display order
func (s *Server) handleListDocTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Configs())
}

// handleSetPrompt replaces the prompt for one document type
func (s *Server) handleSetPrompt(w http.ResponseWriter, r *http.Request) {
	docType, err := document.ParseType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.registry.SetPrompt(docType, req.Prompt); err != nil {
		var cfgErr *document.ConfigurationError
		switch {
		case errors.Is(err, document.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusInternalServerError, cfgErr.Error())
			return
		}
		// The override is applied in memory even when persisting it fails
		slog.Error("Error saving prompt", "doc_type", docType, "error", err)
	}

	cfg, err := s.registry.ConfigFor(docType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleResetDocTypes restores every default prompt
func (s *Server) handleResetDocTypes(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reset(); err != nil {
		slog.Error("Error saving reset prompts", "error", err)
	}
	writeJSON(w, http.StatusOK, s.registry.Configs())
}

// handleGetSession returns the session snapshot
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// handleUpload runs an extraction over the uploaded files
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "Upload is too large. Maximum size is 50MB."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	docType := document.BOM
	if raw := r.FormValue("doc_type"); raw != "" {
		t, err := document.ParseType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		docType = t
	}

	files, err := readFiles(r.MultipartForm.File["files"])
	if err != nil {
		slog.Error("Error reading uploaded files", "error", err)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	// The extraction runs to completion even if the client goes away
	snap, err := s.session.SelectFiles(context.WithoutCancel(r.Context()), files, docType)
	if err != nil {
		if snap.State.Status == session.Failed {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   snap.State.Message,
				"session": snap,
			})
			return
		}
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, snap)
}

func readFiles(headers []*multipart.FileHeader) ([]ingest.File, error) {
	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Filename, err)
		}
		files = append(files, ingest.File{
			Name:      header.Filename,
			MediaType: header.Header.Get("Content-Type"),
			Data:      data,
		})
	}
	return files, nil
}

// handleNewUpload resets the session to idle
func (s *Server) handleNewUpload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.NewUpload()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleUpdateItem sets one field of one row
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.session.UpdateItem(r.PathValue("id"), req.Field, req.Value)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDeleteItem removes one row
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.DeleteItem(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleExport downloads the active record set
func (s *Server) handleExport(format session.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.session.Snapshot().Items) == 0 {
			writeError(w, http.StatusBadRequest, "There are no items to export")
			return
		}

		var buf bytes.Buffer
		filename, contentType, err := s.session.Export(&buf, format, time.Now())
		if err != nil {
			slog.Error("Error exporting items", "format", format, "error", err)
			writeError(w, http.StatusInternalServerError, "Error exporting items")
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		if _, err := w.Write(buf.Bytes()); err != nil {
			slog.Error("Error writing export", "format", format, "error", err)
		}
	}
}

// handleListHistory returns past sessions, most recent first
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.List())
}

// handleSelectHistory loads a past session into the active session
func (s *Server) handleSelectHistory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.SelectHistory(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDeleteHistory deletes a past session
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.DeleteHistory(r.PathValue("id"))
	if err != nil {
		// The entry is gone from memory even when persisting the deletion fails
		slog.Error("Error deleting history entry", "id", r.PathValue("id"), "error", err)
	}
	writeJSON(w, http.StatusOK, snap)
}
