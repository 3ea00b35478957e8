package weatherboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Snapshot keeps the latest good value per field. It is safe for concurrent
// use: a station applies cycles while sinks and metrics read it.
type Snapshot struct {
	mu      sync.RWMutex
	values  map[string]any
	updated map[string]time.Time
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		values:  make(map[string]any),
		updated: make(map[string]time.Time),
	}
}

// Apply stores every successful reading and returns how many were stored.
// Failed readings leave the previous value in place.
func (s *Snapshot) Apply(readings []Reading, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range readings {
		if !r.OK() || r.Field == "" {
			continue
		}
		s.values[r.Field] = r.Value()
		s.updated[r.Field] = at
		n++
	}
	return n
}

// Map returns a copy of the stored values.
func (s *Snapshot) Map() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Fields lists the stored field names alphabetically.
func (s *Snapshot) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Raw returns the stored value without conversions.
func (s *Snapshot) Raw(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// UpdatedAt reports when name last received a good reading.
func (s *Snapshot) UpdatedAt(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.updated[name]
	return at, ok
}

// Float returns the field as float64; int fields are widened.
func (s *Snapshot) Float(name string) (float64, error) {
	v, ok := s.Raw(name)
	if !ok {
		return 0, fmt.Errorf("field %q missing", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field %q has unsupported type %T", name, v)
	}
}

// Int returns an int field. Float fields are refused rather than truncated.
func (s *Snapshot) Int(name string) (int64, error) {
	v, ok := s.Raw(name)
	if !ok {
		return 0, fmt.Errorf("field %q missing", name)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("field %q is not integer (%T)", name, v)
	}
	return n, nil
}

// String renders the stored values as JSON.
func (s *Snapshot) String() string {
	data, err := json.Marshal(s.Map())
	if err != nil {
		return fmt.Sprintf("snapshot (marshal error: %v)", err)
	}
	return string(data)
}
