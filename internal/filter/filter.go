// Package filter implements the property search predicate shared by the
// landing grid and the listings view.
package filter

import (
	"slices"
	"strings"

	"luxemap/estates/internal/models"
)

// Scope selects which view a filter is evaluated for.
type Scope int

const (
	// ScopeListings is the dedicated listings view. It enforces the price range.
	ScopeListings Scope = iota
	// ScopeLanding is the landing-page grid. It ignores the price range.
	ScopeLanding
	// ScopeLandingPriced is the landing grid with the price range enforced.
	ScopeLandingPriced
)

// ParseScope maps a query value to a Scope. Unknown values mean listings.
func ParseScope(s string) Scope {
	if strings.EqualFold(s, "landing") {
		return ScopeLanding
	}
	return ScopeListings
}

func (s Scope) enforcesPrice() bool {
	return s != ScopeLanding
}

func (s Scope) String() string {
	switch s {
	case ScopeLanding, ScopeLandingPriced:
		return "landing"
	default:
		return "listings"
	}
}

// Matches reports whether p satisfies every constraint in f under scope.
// A bedroom constraint that does not parse matches nothing; callers are
// expected to reject such input before it gets here.
func Matches(p models.Property, f models.FilterState, scope Scope) bool {
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Location), term) {
			return false
		}
	}

	if f.Type != "" && models.PropertyCategory(f.Type) != p.Type {
		return false
	}

	if f.Beds != "" {
		minBeds, err := f.MinBeds()
		if err != nil || p.Beds < minBeds {
			return false
		}
	}

	if scope.enforcesPrice() && (p.Price < f.MinPrice || p.Price > f.MaxPrice) {
		return false
	}

	return true
}

// Apply returns the properties matching f, in their original relative order.
// props is not modified.
func Apply(props []models.Property, f models.FilterState, scope Scope) []models.Property {
	out := make([]models.Property, 0, len(props))
	for _, p := range props {
		if Matches(p, f, scope) {
			out = append(out, p)
		}
	}
	return out
}

// SortByPrice returns a copy of props ordered by price. Equal prices keep
// their original order.
func SortByPrice(props []models.Property, ascending bool) []models.Property {
	out := slices.Clone(props)
	slices.SortStableFunc(out, func(a, b models.Property) int {
		switch {
		case a.Price == b.Price:
			return 0
		case (a.Price < b.Price) == ascending:
			return -1
		default:
			return 1
		}
	})
	return out
}
