package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Item is a purchasable product returned by the catalog search service
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Retailer    string  `json:"retailer,omitempty"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// SearchConstraints narrows a catalog search
type SearchConstraints struct {
	MaxPrice   float64  `json:"max_price,omitempty"`
	MinPrice   float64  `json:"min_price,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Client talks to the product catalog search service over HTTP.
// The catalog's ranking is a black box to us; we only send a query
// plus constraints and consume whatever comes back.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchRequest struct {
	Query       string            `json:"query"`
	Constraints SearchConstraints `json:"constraints"`
}

type searchResponse struct {
	Items []Item `json:"items"`
}

// Search queries the catalog service. A timeout or transport error is
// returned as an error; callers treat it the same as zero results.
func (c *Client) Search(ctx context.Context, query string, constraints SearchConstraints) ([]Item, error) {
	payload := searchRequest{
		Query:       query,
		Constraints: constraints,
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/products/search", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog search error: %s", string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	return result.Items, nil
}
