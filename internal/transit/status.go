package transit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// StatusClient queries a train service-status endpoint. The endpoint is
// expected to answer GET <baseURL>?line=<name> with {"line": ..., "status": ...}.
type StatusClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewStatusClient returns a status client for the given endpoint.
func NewStatusClient(baseURL string) *StatusClient {
	return &StatusClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type statusResponse struct {
	Line   string `json:"line"`
	Status string `json:"status"`
}

// Status returns the service-status text for a line.
func (c *StatusClient) Status(ctx context.Context, line string) (string, error) {
	q := url.Values{}
	q.Set("line", line)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("train status: unexpected status " + resp.Status)
	}
	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	return sr.Status, nil
}
