package sportsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SportsDataInterface is the provider surface the services depend on; tests
// substitute a fake.
type SportsDataInterface interface {
	FetchFixtures(ctx context.Context, leagueID int64, season string) ([]APIFixture, error)
	FetchStandings(ctx context.Context, leagueID int64, season string) ([]APIStanding, error)
	FetchLiveFixtures(ctx context.Context) ([]APIFixture, error)
	HealthCheck(ctx context.Context) error
}

// Client is the HTTP client for the sports-data provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
	config     *Config
}

func NewClient(config *Config, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		config: config,
	}
}

func (c *Client) createRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	url := fmt.Sprintf("%s%s", c.baseURL, endpoint)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("User-Agent", "MatchPulse-SportsData-Client/1.0")

	return req, nil
}

func (c *Client) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debugf("sports API request: %s %s -> %d", req.Method, req.URL.String(), resp.StatusCode)

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("API error [%d]: %s (code: %s)", resp.StatusCode, errResp.Error, errResp.ErrorCode)
		}
		return fmt.Errorf("API error [%d]: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Warnf("sports API retry attempt %d/%d", attempt, c.config.MaxRetries)
		}

		req, err := c.createRequest(ctx, method, endpoint, body)
		if err != nil {
			lastErr = err
			continue
		}

		if err := c.doRequest(req, result); err != nil {
			lastErr = err
			if attempt < c.config.MaxRetries {
				continue
			}
			break
		}

		return nil
	}

	return lastErr
}

// FetchFixtures loads the fixture list for one league season.
func (c *Client) FetchFixtures(ctx context.Context, leagueID int64, season string) ([]APIFixture, error) {
	endpoint := fmt.Sprintf("/v1/leagues/%d/fixtures?season=%s", leagueID, season)
	var response FixturesResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch fixtures: %w", err)
	}
	return response.Fixtures, nil
}

// FetchStandings loads the current table for one league season.
func (c *Client) FetchStandings(ctx context.Context, leagueID int64, season string) ([]APIStanding, error) {
	endpoint := fmt.Sprintf("/v1/leagues/%d/standings?season=%s", leagueID, season)
	var response StandingsResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}
	return response.Standings, nil
}

// FetchLiveFixtures returns every fixture the provider currently reports as
// in play, across all leagues. Used to confirm statuses before the live
// phase evaluates.
func (c *Client) FetchLiveFixtures(ctx context.Context) ([]APIFixture, error) {
	var response FixturesResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, "/v1/fixtures/live", nil, &response); err != nil {
		return nil, fmt.Errorf("fetch live fixtures: %w", err)
	}
	return response.Fixtures, nil
}

// HealthCheck probes the provider without retries.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := c.createRequest(ctx, http.MethodGet, "/v1/status", nil)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}
