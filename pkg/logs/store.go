package logs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept in memory.
const DefaultCapacity = 1000

// Store is the in-memory log ring shared by the slog handler, the
// WebSocket channel and the export endpoint.
type Store struct {
	mu       sync.Mutex
	ring     *Ring[Entry]
	onAppend func(Entry)
}

// NewStore creates a store keeping the last capacity entries.
func NewStore(capacity int) *Store {
	return &Store{ring: NewRing[Entry](capacity)}
}

// OnAppend registers fn to be called with every appended entry, in append
// order. fn runs with the store locked: it must not block, log or use the
// store.
func (s *Store) OnAppend(fn func(Entry)) {
	s.mu.Lock()
	s.onAppend = fn
	s.mu.Unlock()
}

// Append stores e, evicting the oldest entry when the store is full.
func (s *Store) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Push(e)
	if s.onAppend != nil {
		s.onAppend(e)
	}
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Len()
}

// Query returns the entries matching f, oldest first. Stored entries are
// never modified.
func (s *Store) Query(f Filter) []Entry {
	s.mu.Lock()
	all := s.ring.All()
	s.mu.Unlock()

	out := all[:0]
	for _, e := range all {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Filter selects log entries. Zero fields match everything.
type Filter struct {
	Levels []Level
	Search string
	Start  time.Time
	End    time.Time
	// Limit keeps only the most recent entries.
	Limit int
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if len(f.Levels) > 0 {
		found := false
		for _, l := range f.Levels {
			if l == e.Level {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Message), term) &&
			!strings.Contains(strings.ToLower(e.Data), term) {
			return false
		}
	}
	return true
}

// FilterParams is the wire form of a filter, used by the export query
// string and the getLogs command.
type FilterParams struct {
	Level     string      `json:"level" form:"level"`
	Search    string      `json:"search" form:"search"`
	StartDate string      `json:"startDate" form:"startDate"`
	EndDate   string      `json:"endDate" form:"endDate"`
	Limit     json.Number `json:"limit" form:"limit"`
}

// Parse validates the parameters. Level is a comma separated list; dates
// are RFC 3339 timestamps or plain dates, where a plain end date includes
// the whole day.
func (p FilterParams) Parse() (Filter, error) {
	var f Filter
	for _, name := range strings.Split(p.Level, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		l, err := ParseLevel(name)
		if err != nil {
			return Filter{}, err
		}
		f.Levels = append(f.Levels, l)
	}
	f.Search = strings.TrimSpace(p.Search)

	var err error
	if f.Start, err = parseDate(p.StartDate, false); err != nil {
		return Filter{}, fmt.Errorf("invalid startDate: %w", err)
	}
	if f.End, err = parseDate(p.EndDate, true); err != nil {
		return Filter{}, fmt.Errorf("invalid endDate: %w", err)
	}
	if p.Limit != "" {
		if f.Limit, err = strconv.Atoi(p.Limit.String()); err != nil || f.Limit < 0 {
			return Filter{}, fmt.Errorf("invalid limit %q", p.Limit)
		}
	}
	return f, nil
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
