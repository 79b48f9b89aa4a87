package catalog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Goodman667/NeuraSense/internal/logging"
)

// #region entry

// Entry is the display metadata for one intervention in the catalog.
type Entry struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title" json:"title"`
	Category string `yaml:"category" json:"category"`
	Icon     string `yaml:"icon" json:"icon"`
}

// #endregion entry

// #region repository

type snapshot struct {
	entries map[string]Entry
	modTime time.Time
}

// Repository serves catalog entries from a YAML file, hot-reloaded on mtime
// change the same way the rule repository is. Lookups never fail: a missing
// entry degrades to the identifier itself.
type Repository struct {
	path string

	snap      atomic.Pointer[snapshot]
	refreshMu sync.Mutex
}

// NewRepository loads the catalog file. A missing or unparseable catalog is
// not fatal; lookups degrade until the file becomes readable.
func NewRepository(path string) *Repository {
	r := &Repository{path: path}
	if err := r.refresh(); err != nil {
		logging.Warn().Str("path", path).Err(err).Msg("[CATALOG] initial load failed, starting empty")
		r.snap.Store(&snapshot{entries: map[string]Entry{}})
	}
	return r
}

// Lookup returns the display metadata for id. When the catalog has no entry,
// the returned Entry carries the id as its title so resolution never breaks.
func (r *Repository) Lookup(id string) Entry {
	snap := r.current()
	if e, ok := snap.entries[id]; ok {
		return e
	}
	return Entry{ID: id, Title: id}
}

// Len returns the number of loaded entries.
func (r *Repository) Len() int {
	return len(r.current().entries)
}

func (r *Repository) current() *snapshot {
	cur := r.snap.Load()

	info, err := os.Stat(r.path)
	if err != nil {
		return cur
	}
	if cur != nil && info.ModTime().Equal(cur.modTime) {
		return cur
	}
	if err := r.refresh(); err != nil {
		logging.Warn().Str("path", r.path).Err(err).Msg("[CATALOG] refresh failed, serving stale snapshot")
	}
	return r.snap.Load()
}

func (r *Repository) refresh() error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		return fmt.Errorf("stat catalog file: %w", err)
	}
	if cur := r.snap.Load(); cur != nil && info.ModTime().Equal(cur.modTime) {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	var items []Entry
	if err := yaml.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse catalog file: %w", err)
	}

	entries := make(map[string]Entry, len(items))
	for _, e := range items {
		if e.ID == "" {
			continue
		}
		entries[e.ID] = e
	}

	r.snap.Store(&snapshot{entries: entries, modTime: info.ModTime()})
	logging.Info().Int("entries", len(entries)).Str("path", r.path).Msg("[CATALOG] loaded catalog")
	return nil
}

// #endregion repository
