// Package nvdbapi fetches road network segments and road objects from the NVDB read API
// and flattens them into rows understood by nvdbseg.DatasetFromRows.
package nvdbapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://nvdbapiles-v3.atlas.vegvesen.no/"
	DefaultClientName = "nvdbseg"
	DefaultPageSize   = 1000
	DefaultRateLimit  = 5.0

	acceptHeader = "application/vnd.vegvesen.nvdb-v3-rev1+json"
	networkPath  = "vegnett/veglenkesekvenser/segmentert"
)

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the read API client. Every request waits for the rate limiter
type Client struct {
	baseURL    string
	clientName string
	pageSize   int
	limiter    *rate.Limiter
	httpClient HTTPDoer
	logger     *zap.Logger
}

// NewClient returns client with defaults overridden by options
func NewClient(options ...func(*Client)) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		clientName: DefaultClientName,
		pageSize:   DefaultPageSize,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

func (c *Client) String() string {
	return fmt.Sprintf("Client is:\n\tBase URL: %s\n\tX-Client: %s\n\tPage size: %d\n\tRate limit: %v req/s", c.baseURL, c.clientName, c.pageSize, c.limiter.Limit())
}

// WithBaseURL sets API root, e.g. https://nvdbapiles-v3.test.atlas.vegvesen.no/
func WithBaseURL(baseURL string) func(*Client) {
	return func(c *Client) {
		if baseURL == "" {
			return
		}
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		c.baseURL = baseURL
	}
}

// WithClientName sets X-Client header
func WithClientName(name string) func(*Client) {
	return func(c *Client) {
		if name != "" {
			c.clientName = name
		}
	}
}

// WithPageSize sets 'antall' parameter
func WithPageSize(size int) func(*Client) {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithRateLimit sets requests per second. Non-positive value disables limiting
func WithRateLimit(rps float64) func(*Client) {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPDoer replaces underlying HTTP client
func WithHTTPDoer(doer HTTPDoer) func(*Client) {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithLogger sets logger for request tracing
func WithLogger(logger *zap.Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Segments fetches the segmented road network matching filter (e.g. kommune, vegsystemreferanse)
// and returns one row per segment
func (c *Client) Segments(ctx context.Context, filter map[string]string) ([]map[string]interface{}, error) {
	objects, err := FetchAll(ctx, c.pager(networkPath, filter))
	if err != nil {
		return nil, errors.Wrap(err, "Can't fetch road network")
	}
	rows := make([]map[string]interface{}, 0, len(objects))
	for _, obj := range objects {
		rows = append(rows, FlattenSegment(obj))
	}
	c.logger.Info("Fetched road network", zap.Int("segments", len(rows)))
	return rows, nil
}

// RoadObjects fetches road objects of given type and returns one row per road object segment
func (c *Client) RoadObjects(ctx context.Context, objectType int, filter map[string]string) ([]map[string]interface{}, error) {
	params := make(map[string]string, len(filter)+1)
	for k, v := range filter {
		params[k] = v
	}
	params["inkluder"] = "alle"
	objects, err := FetchAll(ctx, c.pager("vegobjekter/"+strconv.Itoa(objectType), params))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't fetch road objects of type %d", objectType)
	}
	rows := make([]map[string]interface{}, 0, len(objects))
	skipped := 0
	for _, obj := range objects {
		flat := FlattenRoadObject(obj)
		if len(flat) == 0 {
			skipped++
			continue
		}
		rows = append(rows, flat...)
	}
	if skipped > 0 {
		c.logger.Warn("Road objects without geometry or current segments were skipped", zap.Int("object_type", objectType), zap.Int("skipped", skipped))
	}
	c.logger.Info("Fetched road objects", zap.Int("object_type", objectType), zap.Int("objects", len(objects)), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Client) pager(path string, filter map[string]string) *endpointPager {
	params := url.Values{}
	for k, v := range filter {
		params.Set(k, v)
	}
	params.Set("antall", strconv.Itoa(c.pageSize))
	return &endpointPager{
		client: c,
		first:  c.baseURL + path + "?" + params.Encode(),
	}
}

type apiResponse struct {
	Objects  []map[string]interface{} `json:"objekter"`
	Metadata struct {
		Returned int `json:"returnert"`
		Next     struct {
			Start string `json:"start"`
			Href  string `json:"href"`
		} `json:"neste"`
	} `json:"metadata"`
}

func (c *Client) get(ctx context.Context, target string) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "Can't wait for rate limiter")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create request")
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-Client", c.clientName)

	c.logger.Debug("Requesting page", zap.String("url", target))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't execute request")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, URL: target, Body: string(body)}
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	response := apiResponse{}
	if err := decoder.Decode(&response); err != nil {
		return nil, errors.Wrap(err, "Can't decode response")
	}
	return &response, nil
}

// APIError is returned for HTTP status codes >= 400
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}
