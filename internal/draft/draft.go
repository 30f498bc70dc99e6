package draft

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Draft is a local ephemeral note: the in-progress input line or a scratch
// joke idea. Drafts live on the client only and never reach the store.
type Draft struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists drafts as JSON files with debounced last-write-wins
// writes. Single-user, single-process, so no locking beyond the mutex is
// needed.
type Store struct {
	dir      string
	debounce time.Duration
	mu       sync.Mutex
	drafts   map[string]*Draft
	timers   map[string]*time.Timer
}

const DefaultDebounce = 500 * time.Millisecond

// NewStore loads existing drafts from dir.
func NewStore(dir string, debounce time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	s := &Store{
		dir:      dir,
		debounce: debounce,
		drafts:   make(map[string]*Draft),
		timers:   make(map[string]*time.Timer),
	}
	s.loadAll()
	return s, nil
}

// Put records the latest text for a draft and schedules a debounced save.
// Rapid successive writes collapse into one file write.
func (s *Store) Put(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[id] = &Draft{ID: id, Text: text, UpdatedAt: time.Now()}

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.debounce, func() {
		s.flush(id)
	})
}

// Get returns the current draft text, whether or not it has hit disk yet.
func (s *Store) Get(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return "", false
	}
	return d.Text, true
}

// List returns all drafts.
func (s *Store) List() []Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, *d)
	}
	return out
}

// Delete removes a draft and its file.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.drafts, id)
	s.mu.Unlock()

	os.Remove(s.path(id))
}

// Close flushes every pending draft synchronously.
func (s *Store) Close() {
	s.mu.Lock()
	var ids []string
	for id, t := range s.timers {
		t.Stop()
		ids = append(ids, id)
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, id := range ids {
		s.flush(id)
	}
}

func (s *Store) flush(id string) {
	s.mu.Lock()
	d, ok := s.drafts[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	snapshot := *d
	s.mu.Unlock()

	data, _ := json.MarshalIndent(snapshot, "", "  ")
	os.WriteFile(s.path(id), data, 0644)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) loadAll() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}

		var d Draft
		if json.Unmarshal(data, &d) == nil && d.ID != "" {
			s.drafts[d.ID] = &d
		}
	}
}
