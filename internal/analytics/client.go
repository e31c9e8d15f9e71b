package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when the analytics backend cannot be reached or
// answers with a server error.
var ErrUnavailable = errors.New("analytics backend unavailable")

// Query selects breach records for one domain.
type Query struct {
	DomainValue string
	Kind        string
	Limit       int
	Search      string
}

// Record is a single breach exposure row as returned by the backend.
type Record struct {
	BreachName string    `json:"breach_name"`
	Identifier string    `json:"identifier"`
	DataTypes  []string  `json:"data_types"`
	BreachedAt time.Time `json:"breached_at"`
	AddedAt    time.Time `json:"added_at"`
}

// Result is one page of breach data plus the backend's total count.
type Result struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// Client fetches breach data for a domain. Implementations must honor the
// context deadline.
type Client interface {
	FetchBreaches(ctx context.Context, q Query) (*Result, error)
}

// HTTPClient talks to the breach analytics backend over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPClient creates an analytics client with the specified timeout
func NewHTTPClient(baseURL string, timeoutMS int) *HTTPClient {
	timeout := time.Duration(timeoutMS) * time.Millisecond
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// FetchBreaches queries the backend for breach records matching q.
func (c *HTTPClient) FetchBreaches(ctx context.Context, q Query) (*Result, error) {
	params := url.Values{}
	params.Set("domain", q.DomainValue)
	params.Set("kind", q.Kind)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	reqURL := fmt.Sprintf("%s/v1/breaches?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeoutError(err) {
			log.Warn().
				Err(err).
				Dur("timeout", c.timeout).
				Str("domain", q.DomainValue).
				Msg("Analytics query timed out")
		} else {
			log.Warn().
				Err(err).
				Str("domain", q.DomainValue).
				Msg("Analytics query failed")
		}
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("domain", q.DomainValue).
			Msg("Analytics backend returned server error (5xx)")
		return nil, ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analytics backend returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode analytics response: %w", err)
	}

	return &result, nil
}

// isTimeoutError checks if an error is a timeout error
func isTimeoutError(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
