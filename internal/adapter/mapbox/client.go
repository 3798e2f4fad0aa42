package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// placeTypes are asked for from most to least specific. Offshore epicentres
// usually match only a region or country.
const placeTypes = "place,region,country"

var (
	ErrUnauthorized = errors.New("mapbox rejected the access token")
	ErrRateLimited  = errors.New("mapbox rate limit exceeded")
)

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a reverse geocoder that issues at most requestsPerSecond
// calls. Lookups wait for the limiter rather than fail.
func NewClient(token string, timeout time.Duration, requestsPerSecond float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode names the most specific place at an epicentre. An empty
// result with a nil error means Mapbox knows nothing there.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	result, err := c.lookup(ctx, lat, lon)
	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	case result.FormattedAddress == "":
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("no place near epicentre", "lat", lat, "lon", lon)
	default:
		c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	}
	return result, err
}

func (c *Client) lookup(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reverseURL(lat, lon), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return domain.GeocodingResult{}, err
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}

	// Features come back most specific first.
	f := body.Features[0]
	return domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}, nil
}

// reverseURL builds /{lon},{lat}.json. Mapbox rejects "limit" on reverse
// queries with several types, so none is sent.
func (c *Client) reverseURL(lat, lon float64) string {
	coord := strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
	q := url.Values{
		"access_token": {c.token},
		"types":        {placeTypes},
		"language":     {"en"},
	}
	return c.baseURL + "/" + coord + ".json?" + q.Encode()
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %q", ErrRateLimited, resp.Header.Get("Retry-After"))
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceType []string `json:"place_type"`
	PlaceName string   `json:"place_name"`
	Text      string   `json:"text"`
	Relevance float64  `json:"relevance"`
}
