package fixtures

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"luxemap/estates/internal/logging"
	"luxemap/estates/internal/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// document mirrors catalog.yaml.
type document struct {
	Agents         []models.Agent                     `yaml:"agents"`
	Properties     []models.Property                  `yaml:"properties"`
	Testimonials   []models.Testimonial               `yaml:"testimonials"`
	Curations      []models.LifestyleCuration         `yaml:"lifestyle_curations"`
	Neighborhoods  map[string]models.NeighborhoodInfo `yaml:"neighborhoods"`
	ViewCounts     map[string]int                     `yaml:"view_counts"`
	FAQTopics      []models.FAQTopic                  `yaml:"faq_topics"`
	MarketInsights models.MarketInsights              `yaml:"market_insights"`
	ServicesPage   models.ServicesPage                `yaml:"services_page"`
	AgentsPage     models.AgentsPage                  `yaml:"agents_page"`
}

// Catalog is the read-only fixture set. Every accessor returns copies.
type Catalog struct {
	doc        document
	propByID   map[string]int
	agentByID  map[string]int
	answerByQ  map[string]string
	topicByCat map[string]int
}

// Default loads the embedded fixture set.
func Default() (*Catalog, error) {
	return Parse(catalogYAML)
}

// MustDefault is Default for program start-up and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("fixtures: %v", err))
	}
	return c
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}

	c := &Catalog{
		doc:        doc,
		propByID:   make(map[string]int, len(doc.Properties)),
		agentByID:  make(map[string]int, len(doc.Agents)),
		answerByQ:  make(map[string]string),
		topicByCat: make(map[string]int, len(doc.FAQTopics)),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) index() error {
	var errs []error

	for i, a := range c.doc.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("agent #%d has no id", i))
			continue
		}
		if _, dup := c.agentByID[a.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate agent id %q", a.ID))
			continue
		}
		c.agentByID[a.ID] = i
	}

	for i := range c.doc.Properties {
		p := &c.doc.Properties[i]
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("property #%d has no id", i))
			continue
		}
		if _, dup := c.propByID[p.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate property id %q", p.ID))
			continue
		}
		c.propByID[p.ID] = i

		if !p.Type.Valid() {
			errs = append(errs, fmt.Errorf("property %q has unknown category %q", p.ID, p.Type))
		}
		ai, ok := c.agentByID[p.AgentID]
		if !ok {
			errs = append(errs, fmt.Errorf("property %q references unknown agent %q", p.ID, p.AgentID))
		} else {
			p.Agent = c.doc.Agents[ai]
		}
		for _, r := range p.Reviews {
			if r.Rating < 1 || r.Rating > 5 {
				errs = append(errs, fmt.Errorf("review %q on property %q has rating %d outside 1..5", r.ID, p.ID, r.Rating))
			}
		}
	}

	seenCuration := make(map[string]bool, len(c.doc.Curations))
	for _, lc := range c.doc.Curations {
		if lc.ID == "" || seenCuration[lc.ID] {
			errs = append(errs, fmt.Errorf("lifestyle curation %q has an empty or duplicate id", lc.ID))
		}
		seenCuration[lc.ID] = true
	}

	for i, t := range c.doc.FAQTopics {
		if len(t.Questions) == 0 {
			errs = append(errs, fmt.Errorf("faq topic %q has no questions", t.Category))
		}
		if _, dup := c.topicByCat[t.Category]; dup {
			errs = append(errs, fmt.Errorf("duplicate faq topic %q", t.Category))
			continue
		}
		c.topicByCat[t.Category] = i
		for _, q := range t.Questions {
			// First match wins; a repeated question text is a data bug but not fatal.
			if _, dup := c.answerByQ[q.Question]; dup {
				logging.Logger.Warnf("fixtures: duplicate faq question %q in topic %q, keeping first answer", q.Question, t.Category)
				continue
			}
			c.answerByQ[q.Question] = q.Answer
		}
	}

	return errors.Join(errs...)
}

// Properties returns every property in fixture order.
func (c *Catalog) Properties() []models.Property {
	out := make([]models.Property, len(c.doc.Properties))
	for i, p := range c.doc.Properties {
		out[i] = p.Clone()
	}
	return out
}

// Property looks up a property by id.
func (c *Catalog) Property(id string) (models.Property, bool) {
	i, ok := c.propByID[id]
	if !ok {
		return models.Property{}, false
	}
	return c.doc.Properties[i].Clone(), true
}

// HasProperty reports whether id names a property.
func (c *Catalog) HasProperty(id string) bool {
	_, ok := c.propByID[id]
	return ok
}

func (c *Catalog) Agents() []models.Agent {
	out := make([]models.Agent, len(c.doc.Agents))
	for i, a := range c.doc.Agents {
		out[i] = a.Clone()
	}
	return out
}

func (c *Catalog) Agent(id string) (models.Agent, bool) {
	i, ok := c.agentByID[id]
	if !ok {
		return models.Agent{}, false
	}
	return c.doc.Agents[i].Clone(), true
}

func (c *Catalog) Testimonials() []models.Testimonial {
	return slices.Clone(c.doc.Testimonials)
}

// LifestyleCurations returns the landing-page lifestyle tiles in order.
func (c *Catalog) LifestyleCurations() []models.LifestyleCuration {
	return slices.Clone(c.doc.Curations)
}

// Neighborhood returns the neighborhood record keyed by a property id.
func (c *Catalog) Neighborhood(propertyID string) (models.NeighborhoodInfo, bool) {
	n, ok := c.doc.Neighborhoods[propertyID]
	if !ok {
		return models.NeighborhoodInfo{}, false
	}
	return n.Clone(), true
}

// ViewCount returns the listing view counter, 0 when none is recorded.
func (c *Catalog) ViewCount(propertyID string) int {
	return c.doc.ViewCounts[propertyID]
}

// ViewCounts returns a copy of all recorded view counters.
func (c *Catalog) ViewCounts() map[string]int {
	return maps.Clone(c.doc.ViewCounts)
}

// FAQTopics returns the chat topics in display order.
func (c *Catalog) FAQTopics() []models.FAQTopic {
	out := make([]models.FAQTopic, len(c.doc.FAQTopics))
	seenCuration := make(map[string]bool, len(c.doc.Curations))
	for _, lc := range c.doc.Curations {
		if lc.ID == "" || seenCuration[lc.ID] {
			errs = append(errs, fmt.Errorf("lifestyle curation %q has an empty or duplicate id", lc.ID))
		}
		seenCuration[lc.ID] = true
	}

	for i, t := range c.doc.FAQTopics {
		t.Questions = slices.Clone(t.Questions)
		out[i] = t
	}
	return out
}

// FAQTopic finds a topic by its exact category label.
func (c *Catalog) FAQTopic(category string) (models.FAQTopic, bool) {
	i, ok := c.topicByCat[category]
	if !ok {
		return models.FAQTopic{}, false
	}
	t := c.doc.FAQTopics[i]
	t.Questions = slices.Clone(t.Questions)
	return t, true
}

// Answer returns the answer for the first question across all topics
// whose text equals question exactly.
func (c *Catalog) Answer(question string) (string, bool) {
	a, ok := c.answerByQ[question]
	return a, ok
}

func (c *Catalog) MarketInsights() models.MarketInsights {
	return c.doc.MarketInsights.Clone()
}

func (c *Catalog) ServicesPage() models.ServicesPage {
	return c.doc.ServicesPage.Clone()
}

func (c *Catalog) AgentsPage() models.AgentsPage {
	return c.doc.AgentsPage.Clone()
}
