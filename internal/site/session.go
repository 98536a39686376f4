// Package site holds the per-visitor view state: the current route and
// scroll position, the active filters and the property detail panel.
package site

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"luxemap/estates/internal/models"
	"luxemap/estates/internal/route"
)

var (
	ErrUnknownProperty = errors.New("property not found")
	ErrNothingSelected = errors.New("no property is selected")
	ErrInvalidReason   = errors.New("invalid deselect reason")
	ErrInvalidOffset   = errors.New("scroll offset must not be negative")
)

// DeselectReason is how the visitor dismissed the detail panel.
type DeselectReason string

const (
	ReasonClose    DeselectReason = "close"
	ReasonBackdrop DeselectReason = "backdrop"
	ReasonEscape   DeselectReason = "escape"
)

func ParseDeselectReason(s string) (DeselectReason, error) {
	switch r := DeselectReason(s); r {
	case ReasonClose, ReasonBackdrop, ReasonEscape:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReason, s)
	}
}

// Panel is the detail side-panel. The zero value means nothing is selected.
type Panel struct {
	SelectedID   string  `json:"selected_id,omitempty"`
	ScrollOffset float64 `json:"scroll_offset"`
}

func (p Panel) Open() bool {
	return p.SelectedID != ""
}

// PropertyIndex tells the session which property ids exist.
type PropertyIndex interface {
	HasProperty(id string) bool
}

// Session is one visitor's view state. Methods are safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	id       string
	props    PropertyIndex
	route    route.Route
	scroll   float64
	filters  models.FilterState
	panel    Panel
	lastSeen time.Time
}

func newSession(id string, props PropertyIndex, now time.Time) *Session {
	return &Session{
		id:       id,
		props:    props,
		route:    route.Landing,
		filters:  models.DefaultFilterState(),
		lastSeen: now,
	}
}

// Snapshot is an immutable copy of a Session.
type Snapshot struct {
	VisitorID string             `json:"visitor_id"`
	Route     route.Route        `json:"route"`
	Fragment  string             `json:"fragment"`
	ScrollTop float64            `json:"scroll_top"`
	Filters   models.FilterState `json:"filters"`
	Panel     Panel              `json:"panel"`
}

func (s *Session) ID() string { return s.id }

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		VisitorID: s.id,
		Route:     s.route,
		Fragment:  s.route.Fragment(),
		ScrollTop: s.scroll,
		Filters:   s.filters,
		Panel:     s.panel,
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Navigate handles a location change. Every change event scrolls the new
// view back to the top, including a change to the current route.
func (s *Session) Navigate(fragment string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route.Parse(fragment)
	s.scroll = 0
	return s.snapshotLocked()
}

// SetScroll records the page scroll offset of the current view.
func (s *Session) SetScroll(offset float64) (Snapshot, error) {
	if offset < 0 {
		return Snapshot{}, ErrInvalidOffset
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scroll = offset
	return s.snapshotLocked(), nil
}

func (s *Session) Filters() models.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// SetFilters replaces the whole filter state.
func (s *Session) SetFilters(f models.FilterState) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f
	return s.snapshotLocked()
}

func (s *Session) ResetFilters() Snapshot {
	return s.SetFilters(models.DefaultFilterState())
}

// Select opens the detail panel on a property, replacing any current
// selection. The panel scroll starts at the top.
func (s *Session) Select(id string) (Snapshot, error) {
	if !s.props.HasProperty(id) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownProperty, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = Panel{SelectedID: id}
	return s.snapshotLocked(), nil
}

// Deselect closes the panel. Closing an already closed panel is a no-op.
func (s *Session) Deselect(reason DeselectReason) (Snapshot, error) {
	if _, err := ParseDeselectReason(string(reason)); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = Panel{}
	return s.snapshotLocked(), nil
}

// ScrollPanel records the scroll offset inside the open panel.
func (s *Session) ScrollPanel(offset float64) (Snapshot, error) {
	if offset < 0 {
		return Snapshot{}, ErrInvalidOffset
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.panel.Open() {
		return Snapshot{}, ErrNothingSelected
	}
	s.panel.ScrollOffset = offset
	return s.snapshotLocked(), nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
