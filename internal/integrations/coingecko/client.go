// Package coingecko reads public market data from the CoinGecko v3 API.
package coingecko

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
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"

	maxSearchResults   = 10
	maxTrendingResults = 6

	DefaultChartDays = 7
)

// ChartDays are the ranges the chart view offers.
var ChartDays = []int{1, 7, 30, 90, 365}

type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("coingecko: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sends a demo-plan key with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

// Search returns at most ten coins matching query. A blank query returns nil
// without a request.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	var out searchResponse
	if err := c.get(ctx, "/search", url.Values{"query": {query}}, &out); err != nil {
		return nil, err
	}
	if len(out.Coins) > maxSearchResults {
		out.Coins = out.Coins[:maxSearchResults]
	}
	return out.Coins, nil
}

func (c *Client) Coin(ctx context.Context, id string) (CoinDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CoinDetail{}, errors.New("coingecko: coin id must not be empty")
	}
	params := url.Values{
		"localization":   {"false"},
		"tickers":        {"false"},
		"community_data": {"false"},
		"developer_data": {"false"},
	}
	var out CoinDetail
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &out); err != nil {
		return CoinDetail{}, err
	}
	return out, nil
}

// Trending returns at most six trending coins.
func (c *Client) Trending(ctx context.Context) ([]TrendingCoin, error) {
	var out trendingResponse
	if err := c.get(ctx, "/search/trending", nil, &out); err != nil {
		return nil, err
	}
	coins := make([]TrendingCoin, 0, min(len(out.Coins), maxTrendingResults))
	for _, entry := range out.Coins {
		if len(coins) == maxTrendingResults {
			break
		}
		coins = append(coins, entry.Item)
	}
	return coins, nil
}

// MarketChart returns USD price history; days <= 0 means DefaultChartDays.
func (c *Client) MarketChart(ctx context.Context, id string, days int) (MarketChart, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return MarketChart{}, errors.New("coingecko: coin id must not be empty")
	}
	if days <= 0 {
		days = DefaultChartDays
	}
	params := url.Values{
		"vs_currency": {"usd"},
		"days":        {strconv.Itoa(days)},
	}
	var out MarketChart
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &out); err != nil {
		return MarketChart{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko: decode %s: %w", path, err)
	}
	return nil
}
