/*
Package geo resolves coordinates to a (state, district) pair using a
Nominatim-compatible reverse-geocoding service.

REQUEST:
  GET {base}/reverse?format=json&lat=..&lon=..&zoom=10&addressdetails=1
  Nominatim's usage policy requires an identifying User-Agent.

DISTRICT:
  Indian addresses put the district under different keys depending on the
  OSM tagging of the area. The first non-empty of county, state_district
  and district is used.

CACHING:
  Results are kept in an expirable LRU keyed by coordinates rounded to three
  decimals (~110 m), so repeated lookups from the same neighbourhood do not
  hit the public service. Failures are not cached.

SEE ALSO:
  - api/handlers.go: GET /api/geo/reverse
*/
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ourvoice/mgnrega-engine/metrics"
)

// Defaults for Config.
const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "mgnrega-engine/1.0"
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 6 * time.Hour
)

// ErrNoAddress is returned when the service answers without an address.
var ErrNoAddress = errors.New("geo: no address for coordinates")

// Place is the administrative location of a point.
type Place struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// Config configures the client.
type Config struct {
	BaseURL    string
	UserAgent  string
	CacheSize  int
	CacheTTL   time.Duration
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	cache     *expirable.LRU[string, Place]
}

// New creates a client, filling zero fields of cfg with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		cache:     expirable.NewLRU[string, Place](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		State         string `json:"state"`
		County        string `json:"county"`
		StateDistrict string `json:"state_district"`
		District      string `json:"district"`
	} `json:"address"`
}

// Reverse returns the place containing (lat, lon).
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	key := cacheKey(lat, lon)
	if p, ok := c.cache.Get(key); ok {
		metrics.ObserveGeocode("cached")
		return p, nil
	}

	p, err := c.fetch(ctx, lat, lon)
	if err != nil {
		metrics.ObserveGeocode("failed")
		return Place{}, err
	}
	c.cache.Add(key, p)
	metrics.ObserveGeocode("fetched")
	return p, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (Place, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("zoom", "10")
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("geo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Place{}, fmt.Errorf("geo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("geo: decode response: %w", err)
	}
	if body.Error != "" {
		return Place{}, fmt.Errorf("%w: %s", ErrNoAddress, body.Error)
	}

	a := body.Address
	p := Place{State: a.State, District: firstNonEmpty(a.County, a.StateDistrict, a.District)}
	if p.State == "" && p.District == "" {
		return Place{}, ErrNoAddress
	}
	return p, nil
}

// Len reports the number of cached places.
func (c *Client) Len() int {
	return c.cache.Len()
}

func cacheKey(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', 3, 64) + "," + strconv.FormatFloat(lon, 'f', 3, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
