package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bucket is a token bucket: Size tokens, refilled at Rate per second.
type Bucket struct {
	Size int `yaml:"size"`
	Rate int `yaml:"rate"`
}

// RouteRateLimit overrides the global soft and/or hard limit for one
// route, keyed as "<METHOD> <gin full path>".
type RouteRateLimit struct {
	Soft *Bucket `yaml:"soft,omitempty"`
	Hard *Bucket `yaml:"hard,omitempty"`
}

// defaultRouteRateLimits gives the JSON API more headroom: the chat widget
// and detail panel call it on every interaction.
func defaultRouteRateLimits() map[string]RouteRateLimit {
	return map[string]RouteRateLimit{
		"POST /v1/api": {
			Soft: &Bucket{Size: 40, Rate: 10},
			Hard: &Bucket{Size: 120, Rate: 40},
		},
	}
}

// loadRouteRateLimits merges the YAML file at path (if any) over the
// defaults. The file is a map of route key to RouteRateLimit.
func loadRouteRateLimits(path string) (map[string]RouteRateLimit, error) {
	limits := defaultRouteRateLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read RATE_LIMITS_FILE: %w", err)
	}
	var fromFile map[string]RouteRateLimit
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMITS_FILE: %w", err)
	}
	for route, l := range fromFile {
		for _, b := range []*Bucket{l.Soft, l.Hard} {
			if b != nil && (b.Size <= 0 || b.Rate < 0) {
				return nil, fmt.Errorf("invalid RATE_LIMITS_FILE: bad bucket for %q", route)
			}
		}
		limits[route] = l
	}
	return limits, nil
}
