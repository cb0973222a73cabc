/*
Package datagov is the upstream open-data client (data.gov.in resource API).

REQUEST:
  GET {base}/resource/{resourceID}
      ?api-key=KEY&format=json&limit=1&offset=0
      &filters[state_name]=Uttar Pradesh
      &filters[district_name]=Agra
      &filters[fin_year]=2024-2025
      &filters[month]=Dec

  The resource is keyed by financial year and short month name, so the
  calendar (month, year) of the query is translated with mgnrega.ToPeriodKey.

RESPONSE:
  {"records": [{...}], "total": N, ...}
  The first record is returned verbatim (numbers kept as json.Number) for
  the field mapper. No records -> (nil, nil).

FAILURES:
  Transport errors and non-2xx statuses are returned to the resolver, which
  logs them and treats the tier as a miss. There are no retries.
*/
package datagov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// DefaultBaseURL is the public data.gov.in API root.
const DefaultBaseURL = "https://api.data.gov.in"

// Config configures the client.
type Config struct {
	BaseURL    string
	APIKey     string
	ResourceID string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Configured reports whether both credentials are present.
func (c Config) Configured() bool {
	return c.APIKey != "" && c.ResourceID != ""
}

// Client implements mgnrega.Source.
type Client struct {
	baseURL    string
	apiKey     string
	resourceID string
	http       *http.Client
}

var _ mgnrega.Source = (*Client)(nil)

// New creates a client. Callers should check cfg.Configured first; the
// composition root leaves the resolver's source nil otherwise.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
		resourceID: cfg.ResourceID,
		http:       client,
	}
}

type response struct {
	Records []map[string]any `json:"records"`
}

// Fetch returns the single matching record, or nil when there is none.
func (c *Client) Fetch(ctx context.Context, q mgnrega.Query) (map[string]any, error) {
	key, err := mgnrega.ToPeriodKey(q.Month, q.Year)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("offset", "0")
	params.Set("filters[state_name]", q.State)
	params.Set("filters[district_name]", q.District)
	params.Set("filters[fin_year]", key.FinYear)
	params.Set("filters[month]", key.Month)

	endpoint := fmt.Sprintf("%s/resource/%s?%s", c.baseURL, url.PathEscape(c.resourceID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("datagov: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datagov: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &mgnrega.UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body response
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("datagov: decode response: %w", err)
	}
	if len(body.Records) == 0 {
		return nil, nil
	}
	return body.Records[0], nil
}
