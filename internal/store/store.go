// Package store keeps accepted reports in a bounded time window in memory.
//
// Expired reports are swept on every read and write rather than by a
// background timer, so the window is always consistent at the point of use
// and tests can drive eviction with a fake clock.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/opensampa/outage-map/internal/domain"
)

// ErrRateLimited marks a submission arriving before the session's minimum
// interval has elapsed.
var ErrRateLimited = errors.New("session submitted too recently")

// DistrictKey is the composite aggregation key. A struct key rules out the
// delimiter-collision bugs of concatenated string keys.
type DistrictKey struct {
	District string
	Zone     string
}

// DistrictCount is one row of the ranked aggregation.
type DistrictCount struct {
	District   string            `json:"district"`
	Zone       string            `json:"zone"`
	NoPower    int               `json:"no_power"`
	NoWater    int               `json:"no_water"`
	Total      int               `json:"total"`
	Coordinate domain.Coordinate `json:"coordinate"` // most recent report's location
}

// Store is the time-window report store. Safe for concurrent use.
type Store struct {
	window      time.Duration
	minInterval time.Duration
	clock       clockwork.Clock

	mu       sync.Mutex
	reports  []domain.Report
	lastSeen map[string]time.Time // session → last accepted submission
}

// New creates a store retaining reports for window and enforcing
// minInterval between accepted submissions per session. minInterval <= 0
// disables rate limiting.
func New(window, minInterval time.Duration, clock clockwork.Clock) *Store {
	return &Store{
		window:      window,
		minInterval: minInterval,
		clock:       clock,
		lastSeen:    make(map[string]time.Time),
	}
}

// Add stamps the report with the store clock, enforces the per-session rate
// limit, and retains it. Returns the stored report with ID and timestamp set.
func (s *Store) Add(sessionID string, res domain.ResolutionResult, typ domain.IncidentType) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.evict(now)

	if s.minInterval > 0 && sessionID != "" {
		if last, ok := s.lastSeen[sessionID]; ok && now.Sub(last) < s.minInterval {
			return domain.Report{}, ErrRateLimited
		}
	}

	report := domain.NewReport(res, typ, now)
	s.reports = append(s.reports, report)
	if sessionID != "" {
		s.lastSeen[sessionID] = now
	}
	return report, nil
}

// Reports returns the reports currently inside the window, oldest first.
func (s *Store) Reports() []domain.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.clock.Now())
	out := make([]domain.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Len returns the number of retained reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.clock.Now())
	return len(s.reports)
}

// Aggregate returns per-district counts ranked by total descending, district
// name ascending on ties.
func (s *Store) Aggregate() []DistrictCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.clock.Now())

	counts := make(map[DistrictKey]*DistrictCount)
	for _, r := range s.reports {
		key := DistrictKey{District: r.District, Zone: r.Zone}
		row, ok := counts[key]
		if !ok {
			row = &DistrictCount{District: r.District, Zone: r.Zone}
			counts[key] = row
		}
		switch r.IncidentType {
		case domain.NoPower:
			row.NoPower++
		case domain.NoWater:
			row.NoWater++
		}
		row.Total++
		// Reports are ordered oldest first, so this ends up at the most
		// recent report's coordinate.
		row.Coordinate = r.Coordinate
	}

	rows := make([]DistrictCount, 0, len(counts))
	for _, row := range counts {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(a, b int) bool {
		if rows[a].Total != rows[b].Total {
			return rows[a].Total > rows[b].Total
		}
		return rows[a].District < rows[b].District
	})
	return rows
}

// evict drops reports outside the window and stale session entries.
// Caller must hold the lock.
func (s *Store) evict(now time.Time) {
	cutoff := now.Add(-s.window)

	keep := s.reports[:0]
	for _, r := range s.reports {
		if r.ReportedAt.After(cutoff) {
			keep = append(keep, r)
		}
	}
	s.reports = keep

	// Session entries only matter within minInterval; pruning on the wider
	// window bound keeps the map from growing without a second timer.
	for session, last := range s.lastSeen {
		if !last.After(cutoff) {
			delete(s.lastSeen, session)
		}
	}
}
