package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxPrice is the upper bound of a fresh filter.
const DefaultMaxPrice int64 = 100_000_000

// FilterState holds the visitor's search constraints. Empty fields are unconstrained.
// Beds is kept as entered and parsed with MinBeds.
type FilterState struct {
	Search   string `json:"search" form:"search" validate:"max=200"`
	Type     string `json:"type" form:"type" validate:"max=32"`
	MinPrice int64  `json:"minPrice" form:"min_price" validate:"gte=0"`
	MaxPrice int64  `json:"maxPrice" form:"max_price" validate:"gte=0"`
	Beds     string `json:"beds" form:"beds" validate:"omitempty,number"`
}

// DefaultFilterState returns the filter a new session starts with.
func DefaultFilterState() FilterState {
	return FilterState{MaxPrice: DefaultMaxPrice}
}

// MinBeds parses the bedroom constraint. An empty constraint yields 0.
func (f FilterState) MinBeds() (int, error) {
	s := strings.TrimSpace(f.Beds)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bedroom constraint %q", f.Beds)
	}
	return n, nil
}
