// Package elevation is a client for an Open-Elevation compatible lookup API.
package elevation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	errs "github.com/lintang-b-s/roadgraph/pkg/errors"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/pathway"
)

// Sentinel is the altitude recorded when a lookup keeps failing.
const Sentinel = -1000.0

const maxLocationsPerRequest = 1000

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type lookupRequest struct {
	Locations []location `json:"locations"`
}

type lookupResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Elevation float64 `json:"elevation"`
	} `json:"results"`
}

type Client struct {
	url      string
	http     *http.Client
	attempts int
	delay    time.Duration
	onRetry  func(int, error)
}

type Option func(*Client)

// WithRetry sets how many times a failed request is tried and the pause between tries.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

func WithRetryHook(fn func(int, error)) Option {
	return func(c *Client) { c.onRetry = fn }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient points at the lookup endpoint, e.g. http://localhost:8080/api/v1/lookup.
func NewClient(url string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		url:      url,
		http:     &http.Client{Timeout: timeout},
		attempts: 3,
		delay:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns one altitude per coordinate, in order.
func (c *Client) Lookup(ctx context.Context, coords []datastructure.Coordinate) ([]float64, error) {
	out := make([]float64, 0, len(coords))
	for start := 0; start < len(coords); start += maxLocationsPerRequest {
		chunk := coords[start:min(start+maxLocationsPerRequest, len(coords))]

		var altitudes []float64
		err := errs.Retry(ctx, c.attempts, c.delay, func() error {
			var err error
			altitudes, err = c.lookup(ctx, chunk)
			return err
		}, c.onRetry)
		if err != nil {
			return nil, err
		}
		out = append(out, altitudes...)
	}
	return out, nil
}

// LookupOrSentinel is Lookup with every altitude set to Sentinel when the
// service cannot be reached.
func (c *Client) LookupOrSentinel(ctx context.Context, coords []datastructure.Coordinate) ([]float64, error) {
	altitudes, err := c.Lookup(ctx, coords)
	if err == nil {
		return altitudes, nil
	}
	if !errs.IsTransient(err) {
		return nil, err
	}
	altitudes = make([]float64, len(coords))
	for i := range altitudes {
		altitudes[i] = Sentinel
	}
	return altitudes, err
}

// ReadNodes returns per-node altitude and cumulative distance along nodes.
func (c *Client) ReadNodes(ctx context.Context, nodes []datastructure.Node) (pathway.Elevation, error) {
	coords := datastructure.Coordinates(nodes)
	altitudes, err := c.Lookup(ctx, coords)
	if err != nil {
		return pathway.Elevation{}, err
	}
	return pathway.Elevation{
		Altitudes: altitudes,
		Distances: geo.CumulativeDistances(coords),
	}, nil
}

func (c *Client) lookup(ctx context.Context, coords []datastructure.Coordinate) ([]float64, error) {
	req := lookupRequest{Locations: make([]location, len(coords))}
	for i, co := range coords {
		req.Locations[i] = location{Latitude: co.Lat, Longitude: co.Lon}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "build elevation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errs.Transient(err, "elevation lookup for %d locations", len(coords))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, errs.Transient(err, "elevation lookup")
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "elevation lookup")
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errs.Transient(err, "decode elevation response")
	}
	if len(decoded.Results) != len(coords) {
		return nil, errs.New(errs.ErrCodeTransientRemote, "elevation service returned %d results for %d locations",
			len(decoded.Results), len(coords))
	}

	altitudes := make([]float64, len(decoded.Results))
	for i, r := range decoded.Results {
		altitudes[i] = r.Elevation
	}
	return altitudes, nil
}
