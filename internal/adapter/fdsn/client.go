package fdsn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// queryTimeLayout is the FDSN starttime/endtime format.
const queryTimeLayout = "2006-01-02T15:04:05"

// catalogs maps well-known FDSN data centres to their event query endpoints.
var catalogs = map[string]string{
	"IRIS": "https://service.iris.edu/fdsnws/event/1/query",
	"USGS": "https://earthquake.usgs.gov/fdsnws/event/1/query",
	"EMSC": "https://www.seismicportal.eu/fdsnws/event/1/query",
	"ISC":  "https://www.isc.ac.uk/fdsnws/event/1/query",
}

// ResolveCatalog returns the event query endpoint for a data centre name
// (case-insensitive) or passes an explicit http(s) URL through.
func ResolveCatalog(catalog string) (string, error) {
	if u, ok := catalogs[strings.ToUpper(strings.TrimSpace(catalog))]; ok {
		return u, nil
	}
	parsed, err := url.Parse(catalog)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("unknown catalog %q", catalog)
	}
	return catalog, nil
}

// Client queries an FDSN event web service.
// It implements pipeline.Fetcher.
type Client struct {
	catalog    string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a catalog client for a data centre name or endpoint URL.
func NewClient(catalog string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	baseURL, err := ResolveCatalog(catalog)
	if err != nil {
		return nil, err
	}
	return &Client{
		catalog: catalog,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// FetchEvents runs one event query. A "no data" answer yields an empty
// slice and a nil error; every other failure is a *domain.FetchError.
func (c *Client) FetchEvents(ctx context.Context, q domain.Query) ([]domain.CatalogEvent, error) {
	fullURL := c.baseURL + "?" + queryParams(q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, c.fail(domain.ErrCatalogUnavailable, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		c.logger.Info("catalog returned no events", "catalog", c.catalog)
		return []domain.CatalogEvent{}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(domain.ErrCatalogUnavailable,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	events, err := DecodeQuakeML(resp.Body)
	if err != nil {
		return nil, c.fail(domain.ErrMalformedResponse, err)
	}

	c.logger.Info("catalog query complete",
		"catalog", c.catalog,
		"events", len(events),
		"duration", time.Since(start),
	)
	return events, nil
}

func (c *Client) fail(kind, err error) error {
	return &domain.FetchError{Catalog: c.catalog, Err: fmt.Errorf("%w: %w", kind, err)}
}

func queryParams(q domain.Query) url.Values {
	return url.Values{
		"minlatitude":  {formatFloat(q.Bounds.MinLatitude)},
		"maxlatitude":  {formatFloat(q.Bounds.MaxLatitude)},
		"minlongitude": {formatFloat(q.Bounds.MinLongitude)},
		"maxlongitude": {formatFloat(q.Bounds.MaxLongitude)},
		"starttime":    {q.StartTime.UTC().Format(queryTimeLayout)},
		"endtime":      {q.EndTime.UTC().Format(queryTimeLayout)},
		"minmagnitude": {formatFloat(q.Magnitude.Min)},
		"maxmagnitude": {formatFloat(q.Magnitude.Max)},
		"format":       {"xml"},
		"nodata":       {"204"},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
