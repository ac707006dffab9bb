package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/extraction"
	"github.com/zombor/doc-digitizer/internal/history"
	"github.com/zombor/doc-digitizer/internal/ingest"
)

// Transcriber turns ingested pages into items
type Transcriber interface {
	Transcribe(ctx context.Context, payloads []ingest.Payload, docType document.Type, instruction string) ([]document.Item, error)
}

// History persists past sessions
type History interface {
	RecordSession(fileName string, docType document.Type, items []document.Item) (history.Entry, error)
	SelectSession(id string) (history.Entry, error)
	SyncActiveEdits(id string, items []document.Item) error
	DeleteSession(id string) error
}

// Configs resolves the active configuration for a document type
type Configs interface {
	ConfigFor(t document.Type) (document.Config, error)
}

// Snapshot is a read-only view of the session
type Snapshot struct {
	State           State             `json:"state"`
	DocType         document.Type     `json:"doc_type"`
	Label           string            `json:"label"`
	Columns         []document.Column `json:"columns"`
	Items           []document.Item   `json:"items"`
	Pages           []ingest.Payload  `json:"pages"`
	ActiveHistoryID string            `json:"active_history_id,omitempty"`
}

// Session drives the idle → uploading → processing → complete/error workflow
// and owns the active record set. All methods are safe for concurrent use;
// the lock is released while files are read and the model is called.
type Session struct {
	mu              sync.Mutex
	state           State
	docType         document.Type
	items           []document.Item
	payloads        []ingest.Payload
	activeHistoryID string

	transcriber Transcriber
	history     History
	configs     Configs
}

// New creates an idle session
func New(transcriber Transcriber, hist History, configs Configs) *Session {
	return &Session{
		state:       State{Status: Idle},
		docType:     document.BOM,
		items:       []document.Item{},
		transcriber: transcriber,
		history:     hist,
		configs:     configs,
	}
}

// SelectFiles runs a full extraction for the selected files. Validation
// failures leave the session idle. Extraction failures move it to the error
// state and are also returned.
func (s *Session) SelectFiles(ctx context.Context, files []ingest.File, docType document.Type) (Snapshot, error) {
	s.mu.Lock()
	switch {
	case s.state.Busy():
		s.mu.Unlock()
		return Snapshot{}, ErrBusy
	case s.state.Status != Idle:
		s.mu.Unlock()
		return Snapshot{}, ErrNotIdle
	}
	if err := ingest.Validate(files); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	docType, err := document.ParseType(string(docType))
	if err != nil {
		s.mu.Unlock()
		return Snapshot{}, &ingest.ValidationError{Message: err.Error()}
	}

	s.activeHistoryID = ""
	s.docType = docType
	s.items = []document.Item{}
	s.payloads = nil
	s.state = State{Status: Uploading}
	s.mu.Unlock()

	payloads, err := ingest.Ingest(files)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.payloads = payloads
	s.state = State{
		Status:  Processing,
		Message: fmt.Sprintf("Analyzing %d %s page(s)...", len(files), docType),
	}
	s.mu.Unlock()

	cfg, err := s.configs.ConfigFor(docType)
	if err != nil {
		return s.fail(err)
	}

	items, err := s.transcriber.Transcribe(ctx, payloads, docType, cfg.Prompt)
	if err != nil {
		return s.fail(err)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	entry, err := s.history.RecordSession(history.FileNameLabel(names), docType, items)
	if err != nil {
		slog.Warn("History entry was not persisted", "error", err)
	}

	s.mu.Lock()
	s.items = document.CloneItems(items)
	s.activeHistoryID = entry.ID
	s.state = State{Status: Complete}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	slog.Info("Extraction complete", "doc_type", docType, "pages", len(files), "items", len(items))
	return snap, nil
}

func (s *Session) fail(err error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Status: Failed, Message: userMessage(err)}
	return s.snapshotLocked(), err
}

// userMessage picks the message to show for a failed extraction
func userMessage(err error) string {
	var extErr *extraction.Error
	var cfgErr *extraction.ConfigurationError
	switch {
	case errors.As(err, &extErr):
		return extErr.Message
	case errors.As(err, &cfgErr):
		return cfgErr.Message
	case err.Error() != "":
		return err.Error()
	}
	return "Unknown error occurred"
}

// NewUpload returns to idle and clears the active record set, pages and history link
func (s *Session) NewUpload() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return Snapshot{}, ErrBusy
	}
	s.resetLocked()
	return s.snapshotLocked(), nil
}

func (s *Session) resetLocked() {
	s.state = State{Status: Idle}
	s.items = []document.Item{}
	s.payloads = nil
	s.activeHistoryID = ""
}

// SelectHistory loads a copy of a past session as the active record set
func (s *Session) SelectHistory(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return Snapshot{}, ErrBusy
	}

	entry, err := s.history.SelectSession(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.items = document.CloneItems(entry.Items)
	s.docType = entry.DocType
	s.payloads = nil
	s.activeHistoryID = entry.ID
	s.state = State{Status: Complete}
	return s.snapshotLocked(), nil
}

// DeleteHistory removes a past session. Deleting the active one resets the session to idle.
func (s *Session) DeleteHistory(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.history.DeleteSession(id)
	if s.activeHistoryID == id {
		s.resetLocked()
	}
	return s.snapshotLocked(), err
}

// UpdateItem sets one field of one row and mirrors the active set into history
func (s *Session) UpdateItem(itemID, field, value string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != Complete {
		return Snapshot{}, ErrNotEditable
	}
	if !s.hasColumnLocked(field) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	i := s.itemIndexLocked(itemID)
	if i < 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	s.items[i].Fields[field] = value
	s.syncLocked()
	return s.snapshotLocked(), nil
}

// DeleteItem removes one row and mirrors the active set into history
func (s *Session) DeleteItem(itemID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != Complete {
		return Snapshot{}, ErrNotEditable
	}

	i := s.itemIndexLocked(itemID)
	if i < 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.syncLocked()
	return s.snapshotLocked(), nil
}

// Snapshot returns a copy of the current session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) syncLocked() {
	if s.activeHistoryID == "" {
		return
	}
	if err := s.history.SyncActiveEdits(s.activeHistoryID, s.items); err != nil {
		slog.Warn("Failed to sync edits to history", "history_id", s.activeHistoryID, "error", err)
	}
}

func (s *Session) itemIndexLocked(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) hasColumnLocked(key string) bool {
	cfg, err := document.DefaultConfig(s.docType)
	if err != nil {
		return false
	}
	for _, col := range cfg.Columns {
		if col.Key == key {
			return true
		}
	}
	return false
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:           s.state,
		DocType:         s.docType,
		Items:           document.CloneItems(s.items),
		Pages:           append([]ingest.Payload{}, s.payloads...),
		ActiveHistoryID: s.activeHistoryID,
	}
	if cfg, err := s.configs.ConfigFor(s.docType); err == nil {
		snap.Label = cfg.Label
		snap.Columns = cfg.Columns
	}
	return snap
}
