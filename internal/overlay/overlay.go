// Package overlay implements the user-owned custom pattern overlay: exact
// phrase -> command overrides checked before any cascade tier. An overlay
// hit always yields confidence 1.0 with method custom.
package overlay

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"slashsense/internal/lexical"
	"slashsense/internal/logging"
	"slashsense/internal/types"
)

// Store holds the session's overlay entries. Loaded once at session start;
// mutated only by Reload on an explicit signal, never concurrently with an
// in-flight detection in the same session. Reads are lock-guarded anyway so
// independent sessions sharing a process stay safe.
type Store struct {
	mu      sync.RWMutex
	entries map[string]types.OverlayEntry // normalized phrase -> winning entry
	load    func() ([]types.OverlayEntry, error)
}

// NewFromEntries builds an overlay from pre-parsed entries.
func NewFromEntries(entries []types.OverlayEntry) *Store {
	s := &Store{
		load: func() ([]types.OverlayEntry, error) { return entries, nil },
	}
	s.entries = index(entries)
	return s
}

// NewFromFile builds an overlay backed by a YAML file:
//
//	patterns:
//	  - phrase: "ship it"
//	    command: /sc:git
//	    priority: 10
//
// A missing file is an empty overlay, not an error; a session without
// custom patterns is the normal case.
func NewFromFile(path string) (*Store, error) {
	s := &Store{
		load: func() ([]types.OverlayEntry, error) { return readFile(path) },
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

type overlayFile struct {
	Patterns []types.OverlayEntry `yaml:"patterns"`
}

func readFile(path string) ([]types.OverlayEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("overlay: read %s: %w", path, err)
	}

	var of overlayFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, fmt.Errorf("overlay: parse %s: %w", path, err)
	}
	return of.Patterns, nil
}

// index resolves duplicate phrases by priority (higher wins; on a tie the
// later entry wins, matching "later sources overwrite earlier").
func index(entries []types.OverlayEntry) map[string]types.OverlayEntry {
	out := make(map[string]types.OverlayEntry, len(entries))
	for _, e := range entries {
		if e.Phrase == "" || e.CommandID == "" {
			continue
		}
		key := lexical.Normalize(e.Phrase)
		if prev, ok := out[key]; ok && prev.Priority > e.Priority {
			continue
		}
		out[key] = e
	}
	return out
}

// Reload re-reads the backing source. Explicit signal only.
func (s *Store) Reload() error {
	entries, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = index(entries)
	n := len(s.entries)
	s.mu.Unlock()

	logging.Overlay("overlay loaded: %d custom patterns", n)
	return nil
}

// Lookup checks the normalized input against the overlay. A hit
// short-circuits the whole cascade.
func (s *Store) Lookup(input string) (types.MatchCandidate, bool) {
	key := lexical.Normalize(input)
	if key == "" {
		return types.MatchCandidate{}, false
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return types.MatchCandidate{}, false
	}

	logging.OverlayDebug("overlay hit: %q -> %s", key, entry.CommandID)
	return types.MatchCandidate{
		CommandID:   entry.CommandID,
		Confidence:  1.0,
		Method:      types.MethodCustom,
		MatchedSpan: key,
	}, true
}

// Len returns the number of distinct overlay phrases.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
