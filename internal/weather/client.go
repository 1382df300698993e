// Package weather fetches current conditions for a city from an
// OpenWeatherMap-compatible provider and normalizes them into a
// farm.WeatherSnapshot.
//
// Requests are rate limited with a token bucket so a large batch cannot
// exceed the provider's per-minute quota.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/krishisakhi/farm-alerts/internal/farm"
)

// Fetcher returns the current weather for a city.
type Fetcher interface {
	Fetch(ctx context.Context, city string) (farm.WeatherSnapshot, error)
}

// ErrIncompleteResponse is returned when the provider answers 200 but the
// payload lacks temperature or humidity.
var ErrIncompleteResponse = errors.New("weather response missing required fields")

// Client is the HTTP client for the weather provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a weather client with a request timeout and rate
// limiting. requestsPerMinute <= 0 disables the limiter.
func NewClient(baseURL, apiKey string, timeout time.Duration, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    limiter,
		logger:     logger,
	}
}

// currentResponse is the subset of the provider's current-weather payload
// that is read. Pointers distinguish absent fields from zero readings.
type currentResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Rain json.RawMessage `json:"rain"`
}

// Fetch performs a rate-limited GET {base}/weather?q=city&appid=key&units=metric.
func (c *Client) Fetch(ctx context.Context, city string) (farm.WeatherSnapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return farm.WeatherSnapshot{}, errors.New("weather: city is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+params.Encode(), nil)
	if err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("weather request for %s: %w", city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return farm.WeatherSnapshot{}, fmt.Errorf("weather %s returned %d: %s", city, resp.StatusCode, truncate(body, 200))
	}

	snap, err := decodeCurrent(body)
	if err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("weather %s: %w", city, err)
	}

	c.logger.Debug("weather fetched",
		"city", city,
		"temperature", snap.Temperature,
		"humidity", snap.Humidity,
		"rain", snap.RainPresent,
		"duration", time.Since(start).Round(time.Millisecond))
	return snap, nil
}

func decodeCurrent(body []byte) (farm.WeatherSnapshot, error) {
	var r currentResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return farm.WeatherSnapshot{}, fmt.Errorf("decode response: %w", err)
	}
	if r.Main == nil || r.Main.Temp == nil || r.Main.Humidity == nil {
		return farm.WeatherSnapshot{}, ErrIncompleteResponse
	}
	return farm.WeatherSnapshot{
		Temperature: *r.Main.Temp,
		Humidity:    *r.Main.Humidity,
		// Presence of the key is what counts, whatever its contents.
		RainPresent: r.Rain != nil,
	}, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
