// Package track keeps the tracker's site and its named targets, and turns
// them into pointing solutions.
package track

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/azel"
	"github.com/waterloo-rocketry/antenna-tracker-poc/internal/metrics"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Store provides thread-safe access to the site and target set.
type Store struct {
	site atomic.Pointer[azel.GeodeticPosition]

	mu      sync.RWMutex
	targets map[string]Target

	now func() time.Time
}

// NewStore creates a Store with no site and no targets.
func NewStore() *Store {
	return &Store{
		targets: make(map[string]Target),
		now:     time.Now,
	}
}

// Site returns the antenna position, or nil if none has been set.
// The returned value must not be modified.
func (s *Store) Site() *azel.GeodeticPosition {
	return s.site.Load()
}

// SetSite replaces the antenna position.
func (s *Store) SetSite(p azel.GeodeticPosition) {
	s.site.Store(&p)
	metrics.SetSiteConfigured(true)
}

// SetTarget adds or replaces a target.
func (s *Store) SetTarget(name string, p azel.GeodeticPosition) (Target, error) {
	if !namePattern.MatchString(name) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	t := Target{Name: name, Position: p, UpdatedAt: s.now()}

	s.mu.Lock()
	s.targets[name] = t
	n := len(s.targets)
	s.mu.Unlock()

	metrics.SetTargets(n)
	return t, nil
}

// SetTargetECEF adds or replaces a target given in ECEF meters.
func (s *Store) SetTargetECEF(name string, v azel.ECEF[float64]) (Target, error) {
	return s.SetTarget(name, azel.ECEFToGeodetic(v))
}

// Target returns the named target.
func (s *Store) Target(name string) (Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.targets[name]
	return t, ok
}

// DeleteTarget removes the named target. It reports whether it existed.
func (s *Store) DeleteTarget(name string) bool {
	s.mu.Lock()
	_, ok := s.targets[name]
	delete(s.targets, name)
	n := len(s.targets)
	s.mu.Unlock()

	metrics.SetTargets(n)
	return ok
}

// Targets returns all targets ordered by name.
func (s *Store) Targets() []Target {
	s.mu.RLock()
	out := make([]Target, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, t)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Target) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of targets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}

// Point solves the line of sight from the site to the named target.
// Without a site the error wraps azel.ErrNilObserver.
func (s *Store) Point(name string) (Pointing, error) {
	t, ok := s.Target(name)
	if !ok {
		return Pointing{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}

	la, err := azel.Solve(s.site.Load(), &t.Position)
	if err != nil {
		metrics.IncSolves("invalid_input")
		return Pointing{}, fmt.Errorf("point at %q: %w", name, err)
	}
	metrics.IncSolves("ok")

	return Pointing{Target: name, Time: s.now(), LookAngles: la}, nil
}
