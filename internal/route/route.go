package route

import "fmt"

// Route is one of the site's top-level views.
type Route int

const (
	Landing Route = iota
	Properties
	Agents
	MarketInsights
	Services
)

// All lists every route in navigation order.
var All = []Route{Landing, Properties, Agents, MarketInsights, Services}

// Parse maps a location fragment to its Route. Anything unrecognised,
// including the empty fragment, is Landing.
func Parse(fragment string) Route {
	switch fragment {
	case "#/properties":
		return Properties
	case "#/agents":
		return Agents
	case "#/market-insights":
		return MarketInsights
	case "#/services":
		return Services
	default:
		return Landing
	}
}

// Fragment returns the canonical location fragment for r.
func (r Route) Fragment() string {
	switch r {
	case Properties:
		return "#/properties"
	case Agents:
		return "#/agents"
	case MarketInsights:
		return "#/market-insights"
	case Services:
		return "#/services"
	default:
		return "#/"
	}
}

func (r Route) String() string {
	switch r {
	case Properties:
		return "properties"
	case Agents:
		return "agents"
	case MarketInsights:
		return "market-insights"
	case Services:
		return "services"
	default:
		return "landing"
	}
}

// MarshalText encodes the route by name.
func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a route name as written by MarshalText.
func (r *Route) UnmarshalText(b []byte) error {
	for _, candidate := range All {
		if candidate.String() == string(b) {
			*r = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown route %q", string(b))
}
