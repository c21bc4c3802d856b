// Package planet is the HTTP client for the Planet Data, Orders and Basemaps APIs.
package planet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/pkg/api"

	"golang.org/x/time/rate"
)

// MaxPageSize is the largest page the quick-search endpoint will return.
const MaxPageSize = 250

// Client handles API calls to Planet.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	limiter *rate.Limiter
}

// Options tunes the client's pacing and timeouts.
type Options struct {
	RateLimit float64 // requests per second; 0 disables pacing
	RateBurst int
	Timeout   time.Duration
}

// NewClient creates a new client with the given base URL and API key.
func NewClient(baseURL, apiKey string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(limit, opts.RateBurst),
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do paces, authenticates and sends a request, returning the body when the
// status is one of want.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, want ...int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.SetBasicAuth(c.APIKey, "")
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	for _, code := range want {
		if resp.StatusCode == code {
			return respBody, nil
		}
	}
	return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
}

// Search sends POST /data/v1/quick-search for cloud-free PSScene items
// intersecting geometry within the request window. Only the first page is
// fetched; a full page is reported as truncated.
func (c *Client) Search(ctx context.Context, req SearchQuery) (*SearchResult, error) {
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	zero := 0.0
	body := api.SearchRequest{
		ItemTypes: []string{api.ItemTypePSScene},
		Filter: api.Filter{
			Type: "AndFilter",
			Config: []api.Filter{
				{Type: "GeometryFilter", FieldName: "geometry", Config: req.Geometry},
				{Type: "DateRangeFilter", FieldName: "acquired", Config: api.DateRangeConfig{
					GTE: req.Start.Format("2006-01-02") + "T00:00:00Z",
					LTE: req.End.Format("2006-01-02") + "T23:59:59Z",
				}},
				{Type: "RangeFilter", FieldName: "cloud_cover", Config: api.RangeConfig{LTE: &zero}},
			},
		},
	}

	endpoint := fmt.Sprintf("%s/data/v1/quick-search?_page_size=%d", c.BaseURL, pageSize)
	respBody, err := c.do(ctx, http.MethodPost, endpoint, body, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var result api.SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &SearchResult{
		Items:     result.Features,
		Truncated: len(result.Features) >= pageSize,
	}, nil
}

// CreateOrder sends POST /compute/ops/orders/v2 and returns the new order ID.
func (c *Client) CreateOrder(ctx context.Context, req api.CreateOrderRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/compute/ops/orders/v2", c.BaseURL)
	respBody, err := c.do(ctx, http.MethodPost, endpoint, req, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return "", err
	}

	var result api.CreateOrderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("order response carried no id")
	}

	return result.ID, nil
}

// GetOrder sends GET /compute/ops/orders/v2/{id} to retrieve order state and results.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*api.Order, error) {
	endpoint := fmt.Sprintf("%s/compute/ops/orders/v2/%s", c.BaseURL, url.PathEscape(orderID))
	respBody, err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var order api.Order
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	order.Raw = json.RawMessage(respBody)

	return &order, nil
}

// ListMosaics pages through GET /basemaps/v1/mosaics following _links._next.
func (c *Client) ListMosaics(ctx context.Context) ([]api.Mosaic, error) {
	return c.listMosaics(ctx, fmt.Sprintf("%s/basemaps/v1/mosaics", c.BaseURL))
}

// FindMosaic looks a mosaic up by its exact name. It returns nil when none matches.
func (c *Client) FindMosaic(ctx context.Context, name string) (*api.Mosaic, error) {
	endpoint := fmt.Sprintf("%s/basemaps/v1/mosaics?name__is=%s", c.BaseURL, url.QueryEscape(name))
	mosaics, err := c.listMosaics(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	for i := range mosaics {
		if mosaics[i].Name == name {
			return &mosaics[i], nil
		}
	}
	return nil, nil
}

func (c *Client) listMosaics(ctx context.Context, endpoint string) ([]api.Mosaic, error) {
	var all []api.Mosaic
	for endpoint != "" {
		respBody, err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK)
		if err != nil {
			return nil, err
		}

		var page api.MosaicsResponse
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		all = append(all, page.Mosaics...)
		endpoint = page.Links.Next
	}
	return all, nil
}

// Download opens a delivered asset. Result locations are pre-signed, so no
// credentials are sent. The caller must close the returned body.
func (c *Client) Download(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	// Asset downloads can be large; the client timeout would cut them off.
	client := &http.Client{Transport: c.HTTPClient.Transport}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, 0, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	return resp.Body, resp.ContentLength, nil
}
