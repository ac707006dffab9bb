package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/doc-digitizer/internal/document"
	"github.com/zombor/doc-digitizer/internal/storage"
)

// snapshotKey is where the full history is stored
const snapshotKey = "bom_history"

// ErrNotFound is returned when a history entry does not exist
var ErrNotFound = errors.New("history entry not found")

// Entry is one past extraction session
type Entry struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	FileName  string          `json:"fileName"`
	DocType   document.Type   `json:"docType"`
	Items     []document.Item `json:"items"`
}

func (e Entry) clone() Entry {
	e.Items = document.CloneItems(e.Items)
	return e
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Store keeps the history in memory, most recent first, and writes a full
// snapshot to the KV store after every change
type Store struct {
	mu          sync.Mutex
	kv          storage.KV
	entries     []Entry
	idGenerator document.IDGenerator
	timeSource  TimeSource
}

// NewStore creates an empty Store. Call Load to read the persisted snapshot.
func NewStore(kv storage.KV) *Store {
	return NewStoreWithDeps(kv, document.UUIDGenerator{}, defaultTimeSource{})
}

// NewStoreWithDeps creates a new Store with custom dependencies for testing
func NewStoreWithDeps(kv storage.KV, idGen document.IDGenerator, timeSrc TimeSource) *Store {
	return &Store{
		kv:          kv,
		entries:     []Entry{},
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Load replaces the in-memory history with the persisted snapshot. Missing or
// corrupt data results in an empty history, never an error.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = []Entry{}

	data, err := s.kv.Get(snapshotKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return
	}
	if err != nil {
		slog.Warn("Failed to read history, starting empty", "error", err)
		return
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("Ignoring corrupt history snapshot", "error", err)
		return
	}
	for i := range entries {
		// Entries written before document types existed are BOMs
		if entries[i].DocType == "" {
			entries[i].DocType = document.BOM
		}
		if entries[i].Items == nil {
			entries[i].Items = []document.Item{}
		}
	}
	s.entries = entries
	slog.Info("Loaded history", "entries", len(entries))
}

// RecordSession creates a new entry at the front of the history.
// The entry is kept even if persisting it fails.
func (s *Store) RecordSession(fileName string, docType document.Type, items []document.Item) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:        s.idGenerator.Generate(),
		Timestamp: s.timeSource.Now().UnixMilli(),
		FileName:  fileName,
		DocType:   docType,
		Items:     document.CloneItems(items),
	}
	s.entries = append([]Entry{entry}, s.entries...)
	return entry.clone(), s.persistLocked()
}

// SelectSession returns a copy of the entry with id
func (s *Store) SelectSession(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.entries[i].clone(), nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// SyncActiveEdits replaces the items of entry id. An unknown id is ignored:
// the entry may have been deleted while an edit was in flight.
func (s *Store) SyncActiveEdits(id string, items []document.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	s.entries[i].Items = document.CloneItems(items)
	return s.persistLocked()
}

// DeleteSession removes entry id. An unknown id is ignored.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return s.persistLocked()
}

// List returns a copy of the history, most recent first
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	if err := s.kv.Put(snapshotKey, data); err != nil {
		slog.Error("Failed to persist history", "error", err)
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// FileNameLabel builds the display name for a selection: the first file
// name, followed by "+N" when more files were selected
func FileNameLabel(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return fmt.Sprintf("%s +%d", names[0], len(names)-1)
	}
}
