// Package memory implements the runtime's flat, keyword-scored memory
// journal: a single JSON file of notes, searched by keyword overlap
// with a recency boost. There is no embedding step and no vector
// backend — the retrieval contract is deliberately simple.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miniagent-dev/core/pkg/models"
)

// Config controls the memory manager's journal location and search
// behavior.
type Config struct {
	// Path is the journal file, typically .mini-agent/memory/index.json.
	Path string

	// DefaultLimit bounds Search results when the caller passes 0.
	DefaultLimit int

	// RecencyHalfLife sets how quickly the recency boost decays; an
	// entry this old contributes half the boost of a brand new one.
	RecencyHalfLife time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.RecencyHalfLife <= 0 {
		c.RecencyHalfLife = 7 * 24 * time.Hour
	}
	return c
}

// Manager owns the journal file and serializes all access to it; no
// caller touches the file directly.
type Manager struct {
	cfg Config
	mu  sync.Mutex
}

// NewManager returns a Manager for the journal at cfg.Path. The file
// is created lazily on first Append.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg.withDefaults()}
}

// Result pairs a journal entry with its search score.
type Result struct {
	Entry models.MemoryEntry
	Score float64
}

// Append adds a new entry to the journal, assigning an id and
// creation timestamp when the caller left them zero.
func (m *Manager) Append(ctx context.Context, entry models.MemoryEntry) (models.MemoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.loadLocked()
	if err != nil {
		return models.MemoryEntry{}, err
	}
	entries = append(entries, entry)
	if err := m.saveLocked(entries); err != nil {
		return models.MemoryEntry{}, err
	}
	return entry, nil
}

// All returns every entry in the journal, oldest first.
func (m *Manager) All(ctx context.Context) ([]models.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// Delete removes entries by id.
func (m *Manager) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.loadLocked()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !remove[e.ID] {
			kept = append(kept, e)
		}
	}
	return m.saveLocked(kept)
}

// Search scores every journal entry against query: a keyword-overlap
// score (fraction of query tokens found in the entry's content or
// tags) plus a recency boost that decays with age. Entries with no
// keyword overlap are excluded unless query is empty, in which case
// the journal is returned purely by recency. Results are sorted by
// score descending and capped at limit (cfg.DefaultLimit when 0).
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}

	m.mu.Lock()
	entries, err := m.loadLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tokens := tokenize(query)

	var results []Result
	for _, e := range entries {
		recency := recencyBoost(e.CreatedAt, now, m.cfg.RecencyHalfLife)
		if len(tokens) == 0 {
			results = append(results, Result{Entry: e, Score: recency})
			continue
		}
		kw := keywordScore(e, tokens)
		if kw <= 0 {
			continue
		}
		results = append(results, Result{Entry: e, Score: kw + recency})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// tokenize lowercases and splits on whitespace and punctuation.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}

// keywordScore is the fraction of query tokens present in the entry's
// content or tags, so it always falls in [0, 1].
func keywordScore(e models.MemoryEntry, tokens []string) float64 {
	haystack := strings.ToLower(e.Content + " " + strings.Join(e.Tags, " "))
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(tokens))
}

// recencyBoost decays exponentially from 1 (created "now") toward 0
// as age grows past halfLife, so a keyword match from last week still
// edges out an identical-scoring match from last year.
func recencyBoost(createdAt, now time.Time, halfLife time.Duration) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, age.Seconds()/halfLife.Seconds())
}

func (m *Manager) loadLocked() ([]models.MemoryEntry, error) {
	data, err := os.ReadFile(m.cfg.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read journal: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var entries []models.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("memory: parse journal: %w", err)
	}
	return entries, nil
}

func (m *Manager) saveLocked(entries []models.MemoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(m.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("memory: create journal dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: encode journal: %w", err)
	}
	if err := os.WriteFile(m.cfg.Path, data, 0o644); err != nil {
		return fmt.Errorf("memory: write journal: %w", err)
	}
	return nil
}
