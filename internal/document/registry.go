package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zombor/doc-digitizer/internal/storage"
)

const promptsKey = "doc_configs"

// Registry maps document types to their configuration. Only prompts can be
// changed at runtime; overrides are persisted when a store is configured.
type Registry struct {
	mu      sync.RWMutex
	configs map[Type]Config
	store   storage.KV
}

// NewRegistry creates a registry holding the default configs. store may be nil.
func NewRegistry(store storage.KV) *Registry {
	return &Registry{
		configs: defaultConfigs(),
		store:   store,
	}
}

func defaultConfigs() map[Type]Config {
	configs := make(map[Type]Config, len(Types()))
	for _, t := range Types() {
		cfg, err := DefaultConfig(t)
		if err != nil {
			// DefaultConfig covers every value of Types
			panic(err)
		}
		configs[t] = cfg
	}
	return configs
}

// Load applies persisted prompt overrides. Missing or unreadable data
// leaves the defaults in place.
func (r *Registry) Load() {
	if r.store == nil {
		return
	}
	data, err := r.store.Get(promptsKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return
	}
	if err != nil {
		slog.Warn("Failed to read prompt overrides, using defaults", "error", err)
		return
	}

	var prompts map[Type]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		slog.Warn("Ignoring corrupt prompt overrides", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for t, prompt := range prompts {
		cfg, ok := r.configs[t]
		if !ok || strings.TrimSpace(prompt) == "" {
			slog.Warn("Ignoring prompt override", "type", t)
			continue
		}
		cfg.Prompt = prompt
		r.configs[t] = cfg
	}
}

// ConfigFor returns a copy of the configuration for t
func (r *Registry) ConfigFor(t Type) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[t]
	if !ok || len(cfg.Columns) == 0 {
		return Config{}, &ConfigurationError{Type: t, Reason: "missing from registry"}
	}
	return copyConfig(cfg), nil
}

// Configs returns all configurations in display order
func (r *Registry) Configs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.configs))
	for _, t := range Types() {
		if cfg, ok := r.configs[t]; ok {
			out = append(out, copyConfig(cfg))
		}
	}
	return out
}

// SetPrompt replaces the extraction prompt for t
func (r *Registry) SetPrompt(t Type, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyPrompt, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[t]
	if !ok {
		return &ConfigurationError{Type: t, Reason: "missing from registry"}
	}
	cfg.Prompt = prompt
	r.configs[t] = cfg
	return r.persistLocked()
}

// Update accepts a full config but applies only its prompt. Any difference in
// the column list is rejected with ErrSchemaChange.
func (r *Registry) Update(cfg Config) error {
	current, err := r.ConfigFor(cfg.Type)
	if err != nil {
		return err
	}
	if !sameColumns(current.Columns, cfg.Columns) {
		return ErrSchemaChange
	}
	return r.SetPrompt(cfg.Type, cfg.Prompt)
}

// Reset restores every default prompt
func (r *Registry) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = defaultConfigs()
	return r.persistLocked()
}

func (r *Registry) persistLocked() error {
	if r.store == nil {
		return nil
	}
	prompts := make(map[Type]string)
	for _, t := range Types() {
		def, err := DefaultConfig(t)
		if err != nil {
			return err
		}
		if cfg := r.configs[t]; cfg.Prompt != def.Prompt {
			prompts[t] = cfg.Prompt
		}
	}
	data, err := json.Marshal(prompts)
	if err != nil {
		return fmt.Errorf("marshaling prompt overrides: %w", err)
	}
	if err := r.store.Put(promptsKey, data); err != nil {
		return fmt.Errorf("saving prompt overrides: %w", err)
	}
	return nil
}

func copyConfig(cfg Config) Config {
	cfg.Columns = append([]Column(nil), cfg.Columns...)
	return cfg
}

func sameColumns(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
