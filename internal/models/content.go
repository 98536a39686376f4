package models

import "slices"

type Testimonial struct {
	ID      string `json:"id" yaml:"id"`
	Author  string `json:"author" yaml:"author"`
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
	Rating  int    `json:"rating" yaml:"rating"`
}

// LifestyleCuration is one landing-page tile grouping listings by lifestyle.
type LifestyleCuration struct {
	ID          string `json:"id" yaml:"id"`
	Lifestyle   string `json:"lifestyle" yaml:"lifestyle"`
	Tagline     string `json:"tagline" yaml:"tagline"`
	Description string `json:"description" yaml:"description"`
	Image       string `json:"image" yaml:"image"`
	Properties  int    `json:"properties" yaml:"properties"`
	PriceRange  string `json:"priceRange" yaml:"price_range"`
}

type Amenity struct {
	Icon  string `json:"icon" yaml:"icon"`
	Label string `json:"label" yaml:"label"`
}

// NeighborhoodInfo is keyed by the ID of the property it describes.
type NeighborhoodInfo struct {
	Amenities           []Amenity `json:"amenities" yaml:"amenities"`
	Demographics        []string  `json:"demographics" yaml:"demographics"`
	LifestyleHighlights []string  `json:"lifestyleHighlights" yaml:"lifestyle_highlights"`
}

func (n NeighborhoodInfo) Clone() NeighborhoodInfo {
	n.Amenities = slices.Clone(n.Amenities)
	n.Demographics = slices.Clone(n.Demographics)
	n.LifestyleHighlights = slices.Clone(n.LifestyleHighlights)
	return n
}

// FAQEntry is one canned question and its answer.
type FAQEntry struct {
	Question string `json:"q" yaml:"q"`
	Answer   string `json:"a" yaml:"a"`
}

// FAQTopic groups chat questions under a category chip.
type FAQTopic struct {
	Category  string     `json:"category" yaml:"category"`
	Questions []FAQEntry `json:"questions" yaml:"questions"`
}

// QuestionTexts returns the question texts in order.
func (t FAQTopic) QuestionTexts() []string {
	out := make([]string, len(t.Questions))
	for i, q := range t.Questions {
		out[i] = q.Question
	}
	return out
}

// --- Market insights page ---

type MarketStat struct {
	Label       string `json:"label" yaml:"label"`
	Value       string `json:"value" yaml:"value"`
	Icon        string `json:"icon" yaml:"icon"`
	Description string `json:"description" yaml:"description"`
}

type RegionalMarket struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Icon             string   `json:"icon" yaml:"icon"`
	AvgPrice         string   `json:"avgPrice" yaml:"avg_price"`
	Growth           string   `json:"growth" yaml:"growth"`
	HotNeighborhoods []string `json:"hotNeighborhoods" yaml:"hot_neighborhoods"`
	Locations        []string `json:"locations" yaml:"locations"`
}

type InvestmentInsight struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
	Highlight   string `json:"highlight" yaml:"highlight"`
}

type MarketInsights struct {
	Stats    []MarketStat        `json:"stats" yaml:"stats"`
	Regions  []RegionalMarket    `json:"regions" yaml:"regions"`
	Insights []InvestmentInsight `json:"insights" yaml:"insights"`
}

func (m MarketInsights) Clone() MarketInsights {
	m.Stats = slices.Clone(m.Stats)
	regions := make([]RegionalMarket, len(m.Regions))
	for i, r := range m.Regions {
		r.HotNeighborhoods = slices.Clone(r.HotNeighborhoods)
		r.Locations = slices.Clone(r.Locations)
		regions[i] = r
	}
	m.Regions = regions
	m.Insights = slices.Clone(m.Insights)
	return m
}

// --- Services page ---

type CoreService struct {
	Icon        string `json:"icon" yaml:"icon"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

type ProcessStep struct {
	Number      int    `json:"number" yaml:"number"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

type ServiceTier struct {
	Name        string   `json:"name" yaml:"name"`
	Price       string   `json:"price" yaml:"price"`
	Description string   `json:"description" yaml:"description"`
	Features    []string `json:"features" yaml:"features"`
	Recommended bool     `json:"recommended" yaml:"recommended"`
}

type FAQItem struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

type ServicesPage struct {
	CoreServices []CoreService `json:"coreServices" yaml:"core_services"`
	ProcessSteps []ProcessStep `json:"processSteps" yaml:"process_steps"`
	Tiers        []ServiceTier `json:"tiers" yaml:"tiers"`
	FAQ          []FAQItem     `json:"faq" yaml:"faq"`
}

func (s ServicesPage) Clone() ServicesPage {
	s.CoreServices = slices.Clone(s.CoreServices)
	s.ProcessSteps = slices.Clone(s.ProcessSteps)
	tiers := make([]ServiceTier, len(s.Tiers))
	for i, t := range s.Tiers {
		t.Features = slices.Clone(t.Features)
		tiers[i] = t
	}
	s.Tiers = tiers
	s.FAQ = slices.Clone(s.FAQ)
	return s
}

// --- Agents page ---

type ConciergeService struct {
	Icon  string `json:"icon" yaml:"icon"`
	Label string `json:"label" yaml:"label"`
	Desc  string `json:"desc" yaml:"desc"`
}

type AgentTestimonial struct {
	Quote   string `json:"quote" yaml:"quote"`
	Client  string `json:"client" yaml:"client"`
	AgentID string `json:"agent" yaml:"agent"`
}

type AgentsPage struct {
	Services     []ConciergeService `json:"services" yaml:"services"`
	Testimonials []AgentTestimonial `json:"testimonials" yaml:"testimonials"`
}

func (a AgentsPage) Clone() AgentsPage {
	a.Services = slices.Clone(a.Services)
	a.Testimonials = slices.Clone(a.Testimonials)
	return a
}
