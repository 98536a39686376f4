package services

import (
	"fmt"
	"regexp"
	"strings"

	"luxemap/estates/internal/fixtures"
	"luxemap/estates/internal/models"
)

const (
	vcardOrg = "LuxeMap Estates"
	vcardURL = "https://luxemap.com"
)

// ContactCard is a downloadable vCard.
type ContactCard struct {
	Filename string
	Content  string
}

type IAgentService interface {
	List() []models.Agent
	Find(id string) (models.Agent, error)
	ContactCard(id string) (*ContactCard, error)
}

type agentService struct {
	catalog *fixtures.Catalog
}

func NewAgentService(catalog *fixtures.Catalog) IAgentService {
	return &agentService{catalog: catalog}
}

func (s *agentService) List() []models.Agent {
	return s.catalog.Agents()
}

func (s *agentService) Find(id string) (models.Agent, error) {
	a, ok := s.catalog.Agent(id)
	if !ok {
		return models.Agent{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// vcardEscape escapes the characters vCard 3.0 reserves in text values.
var vcardEscape = strings.NewReplacer(`\`, `\\`, ",", `\,`, ";", `\;`, "\n", `\n`)

func (s *agentService) ContactCard(id string) (*ContactCard, error) {
	a, err := s.Find(id)
	if err != nil {
		return nil, err
	}

	lines := []string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + vcardEscape.Replace(a.Name),
		"TITLE:" + vcardEscape.Replace(a.Title),
		"TEL:" + a.Phone,
		"EMAIL:" + a.Email,
		"ORG:" + vcardOrg,
		"URL:" + vcardURL,
		"END:VCARD",
	}
	return &ContactCard{
		Filename: whitespace.ReplaceAllString(a.Name, "_") + ".vcf",
		Content:  strings.Join(lines, "\r\n") + "\r\n",
	}, nil
}
