// Package transit resolves station names to stop records and computes the
// lines shared by two stops, via the HeartRails Express API.
package transit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Stop is a station record. Lines holds the whitespace-tokenized line names
// serving the stop.
type Stop struct {
	Name       string
	Prefecture string
	Lines      []string
	Lat        float64
	Lon        float64
}

// Client queries the HeartRails Express station API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

const defaultBaseURL = "https://express.heartrails.com/api/json"

// NewClient returns a station API client. An empty baseURL selects the
// public HeartRails endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type stationRecord struct {
	Name       string  `json:"name"`
	Line       string  `json:"line"`
	Prefecture string  `json:"prefecture"`
	Lon        float64 `json:"x"`
	Lat        float64 `json:"y"`
}

type stationsResponse struct {
	Response struct {
		Station []stationRecord `json:"station"`
	} `json:"response"`
}

// FindStops returns stop records matching a station name, in source-API
// order (the order carries no meaning; callers tie-break themselves).
// The API returns one record per (station, line) pair; records are grouped
// by station and prefecture, with each record's line field tokenized on
// whitespace and unioned into the stop's line set.
func (c *Client) FindStops(ctx context.Context, name string) ([]Stop, error) {
	q := url.Values{}
	q.Set("method", "getStations")
	q.Set("name", strings.TrimSuffix(strings.TrimSpace(name), "駅"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("station lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("station lookup: unexpected status " + resp.Status)
	}

	var wrapper stationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("station lookup: %w", err)
	}
	return groupStations(wrapper.Response.Station), nil
}

func groupStations(records []stationRecord) []Stop {
	type key struct{ name, pref string }
	index := map[key]int{}
	var stops []Stop
	for _, rec := range records {
		k := key{rec.Name, rec.Prefecture}
		i, ok := index[k]
		if !ok {
			i = len(stops)
			index[k] = i
			stops = append(stops, Stop{
				Name:       rec.Name,
				Prefecture: rec.Prefecture,
				Lat:        rec.Lat,
				Lon:        rec.Lon,
			})
		}
		stops[i].Lines = appendLines(stops[i].Lines, rec.Line)
	}
	return stops
}

// appendLines splits a line field on whitespace and appends each token once.
func appendLines(lines []string, field string) []string {
	for _, tok := range strings.Fields(field) {
		found := false
		for _, l := range lines {
			if l == tok {
				found = true
				break
			}
		}
		if !found {
			lines = append(lines, tok)
		}
	}
	return lines
}

// CommonLines returns the set intersection of two stops' line sets, sorted
// for determinism.
func CommonLines(a, b Stop) []string {
	set := map[string]bool{}
	for _, l := range a.Lines {
		set[l] = true
	}
	var common []string
	seen := map[string]bool{}
	for _, l := range b.Lines {
		if set[l] && !seen[l] {
			seen[l] = true
			common = append(common, l)
		}
	}
	sort.Strings(common)
	return common
}

// PickStop chooses which stop record to use when a name matched several:
// prefer the one whose prefecture equals the hint, else the first.
func PickStop(stops []Stop, prefectureHint string) (Stop, bool) {
	if len(stops) == 0 {
		return Stop{}, false
	}
	if prefectureHint != "" {
		for _, s := range stops {
			if s.Prefecture == prefectureHint {
				return s, true
			}
		}
	}
	return stops[0], true
}
