// Package cache memoizes the deterministic analysis and extraction results of
// a scanner by content hash.
package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/yangwenmai/scanforge/internal/model"
)

// Entry is what one source text analyzes to.
type Entry struct {
	Analysis   model.AnalysisReport
	Parameters *model.ParameterSet
}

func (e Entry) clone() Entry {
	return Entry{Analysis: e.Analysis.Clone(), Parameters: e.Parameters.Clone()}
}

// AnalysisCache is a bounded LRU of Entries. Values are copied on the way in
// and out, so callers never share a report. A nil *AnalysisCache is a valid,
// always-empty cache.
type AnalysisCache struct {
	entries *lru.Cache[string, Entry]
}

// New creates a cache holding up to size entries. A size below one disables
// caching and returns nil.
func New(size int) (*AnalysisCache, error) {
	if size < 1 {
		return nil, nil
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &AnalysisCache{entries: entries}, nil
}

// Key hashes source text.
func Key(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the entry cached for code.
func (c *AnalysisCache) Get(code string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries.Get(Key(code))
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Add stores a copy of e for code.
func (c *AnalysisCache) Add(code string, e Entry) {
	if c == nil {
		return
	}
	c.entries.Add(Key(code), e.clone())
}

// Len returns the number of cached entries.
func (c *AnalysisCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
