// Package geo resolves free-text place names to canonical locations with
// disambiguation candidates.
package geo

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/agnivade/levenshtein"
)

//go:embed cities.json
var citiesJSON []byte

// Place is one resolved location candidate.
type Place struct {
	Name       string  `json:"name"`
	Prefecture string  `json:"prefecture"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// StationSource is the station-name fallback the resolver uses when the
// directory knows nothing about the input.
type StationSource interface {
	FindStations(ctx context.Context, name string) ([]Place, error)
}

// Resolver resolves place names through a fixed strategy chain:
// exact directory match, then fuzzy directory match, then station-name
// lookup. The first strategy to return candidates wins; an empty result
// after all three means "not found".
type Resolver struct {
	directory []Place
	stations  StationSource
}

// maxEditDistance bounds the fuzzy strategy.
const maxEditDistance = 2

// NewResolver builds a resolver over the embedded city directory.
func NewResolver(stations StationSource) (*Resolver, error) {
	var dir []Place
	if err := json.Unmarshal(citiesJSON, &dir); err != nil {
		return nil, err
	}
	return &Resolver{directory: dir, stations: stations}, nil
}

// NewResolverWithDirectory builds a resolver over an explicit directory.
func NewResolverWithDirectory(directory []Place, stations StationSource) *Resolver {
	return &Resolver{directory: directory, stations: stations}
}

// Resolve returns location candidates for a free-text place name, ordered
// by relevance, possibly empty.
func (r *Resolver) Resolve(ctx context.Context, text string) ([]Place, error) {
	q := strings.TrimSpace(text)
	if q == "" {
		return nil, nil
	}

	if hits := r.exact(q); len(hits) > 0 {
		return hits, nil
	}
	if hits := r.fuzzy(q); len(hits) > 0 {
		return hits, nil
	}
	if r.stations == nil {
		return nil, nil
	}
	return r.stations.FindStations(ctx, q)
}

// exact matches the query against the directory by city name or by the
// prefecture+city concatenation users tend to type (東京都豊島区).
func (r *Resolver) exact(q string) []Place {
	var hits []Place
	for _, p := range r.directory {
		if p.Name == q || p.Prefecture+p.Name == q {
			hits = append(hits, p)
		}
	}
	return hits
}

// fuzzy finds the nearest directory names within maxEditDistance and
// returns every entry sharing the best-matching name, so an ambiguous name
// stays ambiguous.
func (r *Resolver) fuzzy(q string) []Place {
	best := maxEditDistance + 1
	bestName := ""
	for _, p := range r.directory {
		if d := levenshtein.ComputeDistance(q, p.Name); d < best {
			best = d
			bestName = p.Name
		}
	}
	if bestName == "" {
		return nil
	}
	var hits []Place
	for _, p := range r.directory {
		if p.Name == bestName {
			hits = append(hits, p)
		}
	}
	return hits
}

// Prefectures returns the distinct prefecture names among candidates, in
// first-seen order. Used to phrase the clarification question.
func Prefectures(places []Place) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range places {
		if !seen[p.Prefecture] {
			seen[p.Prefecture] = true
			out = append(out, p.Prefecture)
		}
	}
	return out
}
