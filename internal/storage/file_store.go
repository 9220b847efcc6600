package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deusflow/autopost/internal/logger"
)

// FileStore keeps state in a single JSON file:
//
//	{"seen": [...], "since_ids": {"account": "id"}, "topics": [...]}
//
// Older files with a "posted" list, or a bare {"account": "id"} map, are read
// as well.
type FileStore struct {
	path     string
	cap      int
	seen     []string
	index    map[string]struct{}
	sinceIDs map[string]string
	topics   []Topic
	mu       sync.RWMutex
	now      func() time.Time
}

type fileState struct {
	Seen     []string          `json:"seen"`
	SinceIDs map[string]string `json:"since_ids,omitempty"`
	Topics   []Topic           `json:"topics,omitempty"`
}

// NewFileStore creates a store backed by path. Call Load before use.
func NewFileStore(path string, capacity int) *FileStore {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &FileStore{
		path:     path,
		cap:      capacity,
		index:    make(map[string]struct{}),
		sinceIDs: make(map[string]string),
		now:      time.Now,
	}
}

// OpenFileStore creates and loads a store. A missing or unreadable state file
// yields an empty store.
func OpenFileStore(path string, capacity int) *FileStore {
	fs := NewFileStore(path, capacity)
	if err := fs.Load(); err != nil {
		logger.Warn("state file unreadable, starting empty", "path", path, "error", err)
	}
	return fs
}

// Load reads the state file. A missing file is not an error.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	if err := fs.decode(raw); err != nil {
		fs.reset()
		return err
	}
	fs.trim()
	return nil
}

// reset empties the in-memory state so a half-read file leaves nothing behind.
func (fs *FileStore) reset() {
	fs.seen = nil
	fs.index = make(map[string]struct{})
	fs.sinceIDs = make(map[string]string)
	fs.topics = nil
}

func (fs *FileStore) decode(raw map[string]json.RawMessage) error {
	for key, val := range raw {
		switch key {
		case "seen", "posted":
			var ids []string
			if err := json.Unmarshal(val, &ids); err != nil {
				return fmt.Errorf("failed to parse %q: %w", key, err)
			}
			for _, id := range ids {
				fs.add(id)
			}
		case "since_ids":
			var m map[string]string
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("failed to parse since_ids: %w", err)
			}
			for k, v := range m {
				fs.sinceIDs[k] = v
			}
		case "topics":
			if err := json.Unmarshal(val, &fs.topics); err != nil {
				return fmt.Errorf("failed to parse topics: %w", err)
			}
		default:
			var id string
			if json.Unmarshal(val, &id) == nil {
				fs.sinceIDs[key] = id
			}
		}
	}
	return nil
}

func (fs *FileStore) add(id string) {
	if id == "" {
		return
	}
	if _, ok := fs.index[id]; ok {
		return
	}
	fs.index[id] = struct{}{}
	fs.seen = append(fs.seen, id)
}

// trim drops the oldest identifiers beyond the cap.
func (fs *FileStore) trim() {
	if len(fs.seen) <= fs.cap {
		return
	}
	drop := fs.seen[:len(fs.seen)-fs.cap]
	for _, id := range drop {
		delete(fs.index, id)
	}
	fs.seen = append([]string(nil), fs.seen[len(drop):]...)
}

func (fs *FileStore) Seen(id string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.index[id]
	return ok
}

func (fs *FileStore) MarkSeen(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.add(id)
	fs.trim()
	return nil
}

func (fs *FileStore) SinceID(account string) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.sinceIDs[account]
}

func (fs *FileStore) SetSinceID(account, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.sinceIDs[account] = id
	return nil
}

func (fs *FileStore) RecentTopics(window time.Duration) []Topic {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	cutoff := fs.now().Add(-window)
	var out []Topic
	for _, t := range fs.topics {
		if t.At.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (fs *FileStore) AddTopic(title string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.topics = append(fs.topics, Topic{Title: title, At: fs.now()})
	return nil
}

// Save rewrites the state file through a temporary file.
func (fs *FileStore) Save() error {
	fs.mu.Lock()
	cutoff := fs.now().Add(-topicRetention)
	kept := fs.topics[:0]
	for _, t := range fs.topics {
		if t.At.After(cutoff) {
			kept = append(kept, t)
		}
	}
	fs.topics = kept

	seen := make([]string, len(fs.seen))
	copy(seen, fs.seen)
	state := fileState{
		Seen:     seen,
		SinceIDs: fs.sinceIDs,
		Topics:   fs.topics,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	fs.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (fs *FileStore) Close() error { return nil }

// GetStats returns store statistics
func (fs *FileStore) GetStats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return map[string]int{
		"seen":     len(fs.seen),
		"accounts": len(fs.sinceIDs),
		"topics":   len(fs.topics),
	}
}
