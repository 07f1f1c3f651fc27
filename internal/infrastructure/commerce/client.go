package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suppchat/backend/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultPageSize          = 250
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 2
	defaultBurst             = 4
	defaultUserAgent         = "SuppChat/1.0"

	maxListingBytes = 8 << 20
	maxPageBytes    = 2 << 20
	maxErrorBytes   = 512
)

// ClientConfig holds configuration for the commerce client
type ClientConfig struct {
	BaseURL           string
	AccessToken       string
	Currency          string
	PageSize          int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Client reads the product listing and product detail pages of the store.
// Both endpoints share one rate limiter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	currency    string
	pageSize    int
	userAgent   string
	rateLimiter *rate.Limiter
	logger      zerolog.Logger
	debug       bool
}

// NewClient creates a new commerce client
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.PageSize <= 0 || cfg.PageSize > defaultPageSize {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		currency:    cfg.Currency,
		pageSize:    cfg.PageSize,
		userAgent:   cfg.UserAgent,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:      logger.With().Str("component", "commerce").Logger(),
	}
}

// SetDebug enables or disables request tracing
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		c.logger.Debug().Msgf(format, args...)
	}
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL, accept string) (*http.Response, error) {
	// Wait fails early when the deadline would pass before a token frees up
	if err := c.rateLimiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrFetchTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	if c.accessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	}

	c.debugLog("GET %s", reqURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

// FetchPage returns one page of the product listing. An empty cursor asks
// for the first page.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*domain.CatalogPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("page_info", cursor)
	}
	reqURL := fmt.Sprintf("%s/products.json?%s", c.baseURL, params.Encode())

	resp, err := c.doRequest(ctx, reqURL, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn().Err(err).Str("cursor", cursor).Msg("catalog page request failed")
		return nil, err
	}

	body, err := readLimitedBody(resp.Body, maxListingBytes)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	var listing productsResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrCommerceAPIFailure, err)
	}

	page := &domain.CatalogPage{
		Items:      mapProducts(listing.Products, c.currency),
		NextCursor: parseNextCursor(resp.Header.Get("Link")),
	}
	c.debugLog("page fetched: %d products, next cursor %q", len(page.Items), page.NextCursor)
	return page, nil
}

// FetchProductPage returns the public detail page of a product
func (c *Client) FetchProductPage(ctx context.Context, handle string) ([]byte, error) {
	if handle == "" {
		return nil, domain.ErrInvalidRequest
	}
	reqURL := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(handle))

	resp, err := c.doRequest(ctx, reqURL, "text/html")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := readLimitedBody(resp.Body, maxPageBytes)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return body, nil
}

// checkStatus maps non-200 responses to domain errors
func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %q", domain.ErrRateLimited, resp.Header.Get("Retry-After"))
	case http.StatusNotFound:
		return domain.ErrProductNotFound
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return fmt.Errorf("%w: status %d", domain.ErrFetchTimeout, resp.StatusCode)
	default:
		body, _ := readLimitedBody(resp.Body, maxErrorBytes)
		return fmt.Errorf("%w: status %d, body: %s", domain.ErrCommerceAPIFailure, resp.StatusCode, string(body))
	}
}

// classifyTransportError separates timeouts, which callers may retry, from
// other transport failures
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrCommerceAPIFailure, err)
}

// readLimitedBody reads at most limit bytes of the body
func readLimitedBody(body io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, limit))
}

// parseNextCursor extracts the page_info of the rel="next" link from a Link
// header such as `<https://shop/products.json?limit=50&page_info=abc>; rel="next"`
func parseNextCursor(header string) string {
	if header == "" {
		return ""
	}

	for _, link := range strings.Split(header, ",") {
		parts := strings.Split(link, ";")
		if len(parts) < 2 {
			continue
		}

		isNext := false
		for _, param := range parts[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if strings.EqualFold(param, `rel="next"`) || strings.EqualFold(param, "rel=next") {
				isNext = true
				break
			}
		}
		if !isNext {
			continue
		}

		target := strings.Trim(strings.TrimSpace(parts[0]), "<>")
		parsed, err := url.Parse(target)
		if err != nil {
			return ""
		}
		return parsed.Query().Get("page_info")
	}
	return ""
}
