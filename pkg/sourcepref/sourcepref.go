package sourcepref

import (
	"fmt"
	"math"
	"sync"

	"github.com/cuemby/s4/pkg/pattern"
)

// Worst is the priority assigned to a source matching none of the
// patterns.
const Worst = math.MaxInt32

// SourcePref is an ordered list of glob patterns, the first matching
// pattern determining a source's priority. It is immutable after
// construction and safe for concurrent use.
type SourcePref struct {
	patterns []*pattern.Pattern

	mu    sync.Mutex
	cache map[string]int
}

// Create compiles an ordered list of glob patterns into a SourcePref.
// The first pattern has the highest priority (index 0).
func Create(patterns []string) (*SourcePref, error) {
	compiled := make([]*pattern.Pattern, len(patterns))
	for i, p := range patterns {
		cp, err := pattern.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("sourcepref: pattern %d: %w", i, err)
		}
		compiled[i] = cp
	}
	return &SourcePref{
		patterns: compiled,
		cache:    make(map[string]int),
	}, nil
}

// Priority returns the priority of src: the index of the first pattern
// it matches, or Worst if none match. A nil SourcePref gives every
// source priority 0 (no preference).
func (sp *SourcePref) Priority(src string) int {
	if sp == nil {
		return 0
	}

	sp.mu.Lock()
	if p, ok := sp.cache[src]; ok {
		sp.mu.Unlock()
		return p
	}
	sp.mu.Unlock()

	p := sp.compute(src)

	sp.mu.Lock()
	sp.cache[src] = p
	sp.mu.Unlock()

	return p
}

func (sp *SourcePref) compute(src string) int {
	for i, p := range sp.patterns {
		if p.Match(src) {
			return i
		}
	}
	return Worst
}
