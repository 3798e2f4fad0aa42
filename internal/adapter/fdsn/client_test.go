package fdsn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentTypeXML = "application/xml"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, 5*time.Second, discardLogger())
	require.NoError(t, err)
	return c
}

func testQuery() domain.Query {
	return domain.Query{
		Catalog:   "IRIS",
		Bounds:    domain.MapBounds{MinLatitude: 10, MaxLatitude: 50, MinLongitude: -130, MaxLongitude: -85},
		StartTime: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Magnitude: domain.MagnitudeRange{Min: 5.0, Max: 9.5},
	}
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/events.xml")
	require.NoError(t, err)
	return data
}

func TestClient_FetchEvents_Success(t *testing.T) {
	fixture := readFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "10", q.Get("minlatitude"))
		assert.Equal(t, "50", q.Get("maxlatitude"))
		assert.Equal(t, "-130", q.Get("minlongitude"))
		assert.Equal(t, "-85", q.Get("maxlongitude"))
		assert.Equal(t, "1970-01-01T00:00:00", q.Get("starttime"))
		assert.Equal(t, "2025-02-01T00:00:00", q.Get("endtime"))
		assert.Equal(t, "5", q.Get("minmagnitude"))
		assert.Equal(t, "9.5", q.Get("maxmagnitude"))
		assert.Equal(t, "xml", q.Get("format"))
		assert.Equal(t, "204", q.Get("nodata"))

		w.Header().Set("Content-Type", contentTypeXML)
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	events, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "smi:service.iris.edu/fdsnws/event/1/query?eventid=11223344", first.ID)
	assert.Equal(t, "earthquake", first.Type)
	assert.Equal(t, []string{"GULF OF CALIFORNIA"}, first.Descriptions)
	require.Len(t, first.Origins, 2)
	assert.Equal(t, time.Date(2019, 6, 10, 13, 11, 41, 567000000, time.UTC), first.Origins[0].Time)
	assert.Equal(t, 26.0712, first.Origins[0].Latitude)
	assert.Equal(t, -110.3051, first.Origins[0].Longitude)
	require.NotNil(t, first.Origins[0].Depth)
	assert.Equal(t, 10000.0, *first.Origins[0].Depth)
	require.NotNil(t, first.Origins[0].CreationInfo)
	assert.Equal(t, "us", first.Origins[0].CreationInfo.AgencyID)
	assert.Equal(t, "NEIC", first.Origins[0].CreationInfo.Author)
	assert.Nil(t, first.Origins[1].Depth)
	require.Len(t, first.Magnitudes, 2)
	require.NotNil(t, first.Magnitudes[0].Value)
	assert.Equal(t, 6.2, *first.Magnitudes[0].Value)
	assert.Equal(t, "Mww", first.Magnitudes[0].Type)

	second := events[1]
	assert.Empty(t, second.Type)
	assert.Empty(t, second.Descriptions)
	assert.Equal(t, time.Date(2021, 8, 14, 12, 29, 8, 0, time.UTC), second.Origins[0].Time)
	assert.Empty(t, second.Magnitudes[0].Type)

	assert.Empty(t, events[2].Origins)
}

func TestClient_FetchEvents_FeedsTabulator(t *testing.T) {
	fixture := readFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	events, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
	require.NoError(t, err)

	table, errs := domain.Tabulate(events, domain.MagnitudeRange{Min: 5.0, Max: 9.5})
	require.Len(t, table, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrMissingOrigin)

	assert.Equal(t, "Mww", table[0].MagnitudeType)
	assert.Equal(t, "agency_id=us, author=NEIC, creation_time=2019-06-10T14:00:00Z", table[0].CreationInfo)
	assert.Equal(t, "Unknown", table[1].EventType)
	assert.Equal(t, "N/A", table[1].MagnitudeType)
	assert.Equal(t, "N/A", table[1].CreationInfo)
	assert.Equal(t, "N/A", table[1].Info)
}

func TestClient_FetchEvents_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	events, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClient_FetchEvents_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Error 503: Service Unavailable"))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "503")
}

func TestClient_FetchEvents_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not xml", "<html>oops"},
		{"truncated", "<quakeml><eventParameters><event>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestClient_FetchEvents_BadEntryKeepsRest(t *testing.T) {
	const body = `<quakeml><eventParameters>
<event publicID="smi:bad-latitude"><origin><time><value>2020-01-01T00:00:00</value></time><latitude><value>north</value></latitude><longitude><value>1</value></longitude></origin><magnitude><mag><value>6.0</value></mag></magnitude></event>
<event publicID="smi:good"><origin><time><value>2020-01-02T00:00:00</value></time><latitude><value>20</value></latitude><longitude><value>-105</value></longitude></origin><magnitude><mag><value>6.5</value></mag></magnitude></event>
<event publicID="smi:bad-time"><origin><time><value>yesterday</value></time><latitude><value>1</value></latitude><longitude><value>1</value></longitude></origin><magnitude><mag><value>7.0</value></mag></magnitude></event>
</eventParameters></quakeml>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	events, err := testClient(t, srv.URL).FetchEvents(context.Background(), testQuery())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Error(t, events[0].Invalid)
	assert.NoError(t, events[1].Invalid)
	assert.Contains(t, events[2].Invalid.Error(), `invalid time "yesterday"`)

	table, errs := domain.Tabulate(events, domain.MagnitudeRange{Min: 5, Max: 9.5})
	require.Len(t, table, 1)
	assert.Equal(t, "smi:good", table[0].EventID)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.ErrorIs(t, e, domain.ErrMalformedEvent)
	}
}

func TestClient_FetchEvents_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 50*time.Millisecond, discardLogger())
	require.NoError(t, err)

	_, err = c.FetchEvents(context.Background(), testQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable))
}

func TestResolveCatalog(t *testing.T) {
	u, err := ResolveCatalog("IRIS")
	require.NoError(t, err)
	assert.Equal(t, "https://service.iris.edu/fdsnws/event/1/query", u)

	u, err = ResolveCatalog("usgs")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://earthquake.usgs.gov/"))

	u, err = ResolveCatalog("http://localhost:8081/fdsnws/event/1/query")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8081/fdsnws/event/1/query", u)

	_, err = ResolveCatalog("NOPE")
	require.Error(t, err)
}
