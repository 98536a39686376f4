package models

import "slices"

// PropertyCategory is the closed set of listing categories.
type PropertyCategory string

const (
	CategoryApartment PropertyCategory = "Apartment"
	CategoryHouse     PropertyCategory = "House"
	CategoryVilla     PropertyCategory = "Villa"
	CategoryPenthouse PropertyCategory = "Penthouse"
	CategoryEstate    PropertyCategory = "Estate"
)

// Categories lists every valid PropertyCategory in display order.
var Categories = []PropertyCategory{
	CategoryApartment,
	CategoryHouse,
	CategoryVilla,
	CategoryPenthouse,
	CategoryEstate,
}

// Valid reports whether c is one of the known categories.
func (c PropertyCategory) Valid() bool {
	return slices.Contains(Categories, c)
}

// Coords is a map marker position as percentages of the map's width and height.
type Coords struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Review is a visitor review owned by a Property.
type Review struct {
	ID      string `json:"id" yaml:"id"`
	User    string `json:"user" yaml:"user"`
	Rating  int    `json:"rating" yaml:"rating"` // 1..5
	Comment string `json:"comment" yaml:"comment"`
}

// Property is a single listing in the catalog.
type Property struct {
	ID          string           `json:"id" yaml:"id"`
	Title       string           `json:"title" yaml:"title"`
	Price       int64            `json:"price" yaml:"price"` // whole currency units
	Location    string           `json:"location" yaml:"location"`
	Coords      Coords           `json:"coords" yaml:"coords"`
	Beds        int              `json:"beds" yaml:"beds"`
	Baths       float64          `json:"baths" yaml:"baths"`
	Sqft        int              `json:"sqft" yaml:"sqft"`
	Type        PropertyCategory `json:"type" yaml:"type"`
	ImageURL    string           `json:"imageUrl" yaml:"image"`
	Description string           `json:"description" yaml:"description"`
	Community   string           `json:"community" yaml:"community"`
	Reviews     []Review         `json:"reviews" yaml:"reviews"`
	AgentID     string           `json:"-" yaml:"agent"`
	Agent       Agent            `json:"agent" yaml:"-"` // resolved from AgentID on load
}

// Clone returns a deep copy of p.
func (p Property) Clone() Property {
	p.Reviews = slices.Clone(p.Reviews)
	p.Agent = p.Agent.Clone()
	return p
}

// Metric is a labeled headline figure on an agent profile.
type Metric struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Agent is a listing agent. Properties reference agents by ID.
type Agent struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Title           string   `json:"title" yaml:"title"`
	Image           string   `json:"image" yaml:"image"`
	Specializations []string `json:"specializations" yaml:"specializations"`
	Metrics         []Metric `json:"metrics" yaml:"metrics"`
	Phone           string   `json:"phone" yaml:"phone"`
	Email           string   `json:"email" yaml:"email"`
	Bio             string   `json:"bio" yaml:"bio"`
	GoldenZones     []string `json:"goldenZones" yaml:"golden_zones"`
}

// Clone returns a deep copy of a.
func (a Agent) Clone() Agent {
	a.Specializations = slices.Clone(a.Specializations)
	a.Metrics = slices.Clone(a.Metrics)
	a.GoldenZones = slices.Clone(a.GoldenZones)
	return a
}
