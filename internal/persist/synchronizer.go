package persist

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"saveup/internal/blob"
	"saveup/internal/core"
)

// DefaultKey is the blob key goals are stored under.
const DefaultKey = "saveup-goals"

// ErrLoad matches every *LoadError.
var ErrLoad = errors.New("load saved goals")

// LoadError reports an unreadable or corrupt blob. It is not fatal: the
// synchronizer falls back to an empty goal set.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// Synchronizer keeps the durable blob in step with the in-memory goal set.
type Synchronizer struct {
	store blob.Store
	key   string

	mu        sync.Mutex
	populated bool
}

func New(store blob.Store, key string) *Synchronizer {
	if key == "" {
		key = DefaultKey
	}
	return &Synchronizer{store: store, key: key}
}

func (s *Synchronizer) Key() string { return s.key }

// Load reads the goal set. A missing blob is an empty set with no error.
func (s *Synchronizer) Load(ctx context.Context) ([]core.Goal, error) {
	data, found, err := s.store.Load(ctx, s.key)
	if err != nil {
		return []core.Goal{}, &LoadError{Key: s.key, Err: err}
	}
	if !found {
		return []core.Goal{}, nil
	}

	goals, err := DecodeGoals(data)
	if err != nil {
		return []core.Goal{}, &LoadError{Key: s.key, Err: err}
	}

	if len(goals) > 0 {
		s.mu.Lock()
		s.populated = true
		s.mu.Unlock()
	}
	return goals, nil
}

// Save replaces the blob with the full goal set. An empty set is skipped
// until the set has been non-empty once in this session, so an unloaded
// store never clobbers existing data.
func (s *Synchronizer) Save(ctx context.Context, goals []core.Goal) (bool, error) {
	s.mu.Lock()
	if len(goals) == 0 && !s.populated {
		s.mu.Unlock()
		return true, nil
	}
	s.mu.Unlock()

	data, err := EncodeGoals(goals)
	if err != nil {
		return false, err
	}
	if err := s.store.Save(ctx, s.key, data); err != nil {
		return false, fmt.Errorf("save %q: %w", s.key, err)
	}

	if len(goals) > 0 {
		s.mu.Lock()
		s.populated = true
		s.mu.Unlock()
	}
	return false, nil
}

// Ping forwards readiness checks to stores that support them.
func (s *Synchronizer) Ping(ctx context.Context) error {
	if p, ok := s.store.(blob.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// EncodeGoals serializes the goal set as a JSON array.
func EncodeGoals(goals []core.Goal) ([]byte, error) {
	if goals == nil {
		goals = []core.Goal{}
	}
	data, err := json.Marshal(goals)
	if err != nil {
		return nil, fmt.Errorf("encode goals: %w", err)
	}
	return data, nil
}

// DecodeGoals parses a JSON array of goals. Missing ledgers become empty
// and missing or short milestone lists are completed.
func DecodeGoals(data []byte) ([]core.Goal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []core.Goal{}, nil
	}

	var goals []core.Goal
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	for i := range goals {
		normalize(&goals[i])
		if goals[i].ID == "" {
			return nil, fmt.Errorf("decode goals: goal %d has no id", i)
		}
	}
	if goals == nil {
		goals = []core.Goal{}
	}
	return goals, nil
}

func normalize(g *core.Goal) {
	if g.Transactions == nil {
		g.Transactions = []core.Transaction{}
	}
	if g.Category == "" {
		g.Category = core.CategoryOther
	}
	have := make(map[int]bool, len(g.Milestones))
	for _, m := range g.Milestones {
		have[m.Percentage] = true
	}
	added := false
	for _, p := range core.MilestonePercentages {
		if !have[p] {
			g.Milestones = append(g.Milestones, core.Milestone{Percentage: p})
			added = true
		}
	}
	if added {
		slices.SortStableFunc(g.Milestones, func(a, b core.Milestone) int {
			return cmp.Compare(a.Percentage, b.Percentage)
		})
	}
}
