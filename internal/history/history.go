// Package history keeps the locally persisted recently-played list.
package history

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/storywave/internal/domain"
)

const (
	// StorageKey is the fixed key the list is stored under
	StorageKey = "storywave_recently_played"

	// Capacity is the maximum number of remembered stories
	Capacity = 20
)

// Store is the recently-played list, most recent first.
// Storage failures never surface: reads fall back to an empty list and
// writes are dropped with a warning.
type Store struct {
	kv     domain.KeyValueStore
	mu     sync.Mutex // Serializes read-modify-write in Record
	logger *slog.Logger
}

// New wraps kv
func New(kv domain.KeyValueStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Record moves storyID to the front of the list
func (s *Store) Record(storyID string) {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := Prepend(s.load(), storyID)
	data, err := json.Marshal(ids)
	if err != nil {
		s.logger.Warn("failed to encode recently played", "error", err)
		return
	}
	if err := s.kv.Put(StorageKey, data); err != nil {
		s.logger.Warn("failed to persist recently played", "storyID", storyID, "error", err)
	}
}

// List returns the stored IDs, empty on any failure
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Clear forgets every entry
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(StorageKey)
}

func (s *Store) load() []string {
	data, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		s.logger.Warn("failed to read recently played", "error", err)
		return []string{}
	}
	if !ok {
		return []string{}
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.Warn("discarding corrupt recently played", "error", err)
		return []string{}
	}
	return sanitize(ids)
}

// Prepend returns ids with id moved to the front, deduplicated and
// truncated to Capacity
func Prepend(ids []string, id string) []string {
	out := make([]string, 0, Capacity)
	out = append(out, id)
	for _, existing := range ids {
		if existing == id {
			continue
		}
		if len(out) == Capacity {
			break
		}
		out = append(out, existing)
	}
	return out
}

// sanitize drops empties and duplicates from a decoded list
func sanitize(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == Capacity {
			break
		}
	}
	return out
}
