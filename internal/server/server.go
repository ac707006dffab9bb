package server

import (
	"log/slog"
	"net/http"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/session"
)

// maxUploadSize bounds a whole multipart upload
const maxUploadSize = int64(50 << 20) // 50MB

// Server exposes the digitization session, history and document types over HTTP
type Server struct {
	session  *session.Session
	registry *document.Registry
	history  *history.Store
	mux      *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(sess *session.Session, registry *document.Registry, hist *history.Store) *Server {
	return NewServerWithMux(sess, registry, hist, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(sess *session.Session, registry *document.Registry, hist *history.Store, mux *http.ServeMux) *Server {
	s := &Server{
		session:  sess,
		registry: registry,
		history:  hist,
		mux:      mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Document types
	s.mux.HandleFunc("GET /api/doctypes", s.handleListDocTypes)
	s.mux.HandleFunc("PUT /api/doctypes/{type}/prompt", s.handleSetPrompt)
	s.mux.HandleFunc("POST /api/doctypes/reset", s.handleResetDocTypes)

	// Session
	s.mux.HandleFunc("GET /api/session", s.handleGetSession)
	s.mux.HandleFunc("POST /api/session/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/session/new", s.handleNewUpload)
	s.mux.HandleFunc("PATCH /api/session/items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /api/session/items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("GET /api/session/export.csv", s.handleExport(session.CSV))
	s.mux.HandleFunc("GET /api/session/export.xlsx", s.handleExport(session.XLSX))

	// History
	s.mux.HandleFunc("GET /api/history", s.handleListHistory)
	s.mux.HandleFunc("POST /api/history/{id}/select", s.handleSelectHistory)
	s.mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
