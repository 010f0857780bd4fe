package retail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cstore-agent/internal/domain"
)

// Endpoints holds the base URLs of the retail microservices.
type Endpoints struct {
	Products        string
	Orders          string
	Recommendations string
	Location        string
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("retail: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// routeDocument is the GeoJSON document served by the location service.
type routeDocument struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Client talks JSON over HTTP to the product, order, recommendation and
// location services.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(endpoints Endpoints, opts ...Option) (*Client, error) {
	endpoints = Endpoints{
		Products:        trimBase(endpoints.Products),
		Orders:          trimBase(endpoints.Orders),
		Recommendations: trimBase(endpoints.Recommendations),
		Location:        trimBase(endpoints.Location),
	}
	if endpoints.Products == "" || endpoints.Orders == "" || endpoints.Recommendations == "" || endpoints.Location == "" {
		return nil, errors.New("retail: all service endpoints must be set")
	}
	// No timeout: a slow collaborator stalls the turn until the Lambda deadline.
	c := &Client{endpoints: endpoints, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func trimBase(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

// ProductsByCategory lists the catalog entries of one category.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if strings.TrimSpace(category) == "" {
		return nil, errors.New("retail: category must not be empty")
	}
	u := c.endpoints.Products + "/products/category/" + url.PathEscape(category)

	var out []domain.Product
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("retail: products for %q: %w", category, err)
	}
	return out, nil
}

// Related returns the items the recommendation service pairs with a product.
func (c *Client) Related(ctx context.Context, q domain.RelatedQuery) ([]domain.Recommendation, error) {
	if strings.TrimSpace(q.ProductID) == "" {
		return nil, errors.New("retail: product id must not be empty")
	}
	params := url.Values{}
	params.Set("currentItemID", q.ProductID)
	params.Set("numResults", strconv.Itoa(q.NumResults))
	params.Set("feature", q.Feature)
	params.Set("userID", q.UserID)
	params.Set("filter", q.Filter)
	u := c.endpoints.Recommendations + "/related?" + params.Encode()

	var out []domain.Recommendation
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("retail: related items for %q: %w", q.ProductID, err)
	}
	return out, nil
}

// SubmitOrder creates an order and returns the service's record of it.
func (c *Client) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderReceipt, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("retail: marshal order: %w", err)
	}
	u := c.endpoints.Orders + "/orders"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("retail: create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.doJSONRequest(req, u)
	if err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("retail: submit order: %w", err)
	}
	var receipt domain.OrderReceipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return domain.OrderReceipt{}, fmt.Errorf("retail: decode order response: %w", err)
	}
	return receipt, nil
}

// CustomerPosition returns the first point of the simulated customer route.
func (c *Client) CustomerPosition(ctx context.Context) (domain.Position, error) {
	u := c.endpoints.Location + "/cstore_route"

	var doc routeDocument
	if err := c.getJSON(ctx, u, &doc); err != nil {
		return domain.Position{}, fmt.Errorf("retail: customer route: %w", err)
	}
	if len(doc.Features) == 0 || len(doc.Features[0].Geometry.Coordinates) == 0 {
		return domain.Position{}, errors.New("retail: customer route has no coordinates")
	}
	first := doc.Features[0].Geometry.Coordinates[0]
	if len(first) < 2 {
		return domain.Position{}, errors.New("retail: customer route coordinate is incomplete")
	}
	return domain.Position{first[0], first[1]}, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	raw, err := c.doJSONRequest(req, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, u string) ([]byte, error) {
	res, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        u,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
