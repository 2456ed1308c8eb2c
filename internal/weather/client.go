// Package weather wraps the OpenWeather current-weather API.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Report is the subset of the current conditions the digest needs.
type Report struct {
	Description string
	TempC       float64
	Rain        bool
}

// Client calls the OpenWeather current-weather endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// NewClient returns a weather client. An empty baseURL selects the public
// OpenWeather endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type currentResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

// Current fetches the current conditions. Coordinates are preferred; a
// place-name query is used when lat/lon are both zero.
func (c *Client) Current(ctx context.Context, lat, lon float64, place string) (Report, error) {
	q := url.Values{}
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "ja")
	if lat != 0 || lon != 0 {
		q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
		q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	} else {
		q.Set("q", place)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Report{}, errors.New("weather lookup: unexpected status " + resp.Status)
	}

	var cr currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Report{}, fmt.Errorf("weather lookup: %w", err)
	}
	if len(cr.Weather) == 0 {
		return Report{}, errors.New("weather lookup: empty conditions")
	}
	return Report{
		Description: cr.Weather[0].Description,
		TempC:       cr.Main.Temp,
		Rain:        strings.Contains(strings.ToLower(cr.Weather[0].Main), "rain"),
	}, nil
}
