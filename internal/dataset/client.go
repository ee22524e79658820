package dataset

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultBaseURL is where the bundled data server listens.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Client fetches the point set from the data server. It never retries;
// a failed fetch is reported once to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient constructs a client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the normalised server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch retrieves the full dataset from {baseURL}/data.
func (c *Client) Fetch(ctx context.Context) ([]Point, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data", nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("dataset: status %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}
