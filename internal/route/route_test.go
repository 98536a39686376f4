package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := map[string]Route{
		"#/":                Landing,
		"":                  Landing,
		"#":                 Landing,
		"#/properties":      Properties,
		"#/agents":          Agents,
		"#/market-insights": MarketInsights,
		"#/services":        Services,
		"#/properties/1":    Landing,
		"#/PROPERTIES":      Landing,
		"#/unknown":         Landing,
	}
	for fragment, want := range tests {
		assert.Equal(t, want, Parse(fragment), "fragment %q", fragment)
	}
}

func TestFragmentRoundTrip(t *testing.T) {
	for _, r := range All {
		assert.Equal(t, r, Parse(r.Fragment()))
	}
}

func TestMarshalText(t *testing.T) {
	b, err := MarketInsights.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "market-insights", string(b))
}

func TestUnmarshalText(t *testing.T) {
	for _, r := range All {
		b, err := r.MarshalText()
		assert.NoError(t, err)
		var got Route
		assert.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, r, got)
	}
	var r Route
	assert.Error(t, r.UnmarshalText([]byte("#/agents")))
}
