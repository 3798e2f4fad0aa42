package domain

import (
	"fmt"
	"time"
)

// Field defaults applied when the catalog leaves a value empty.
const (
	DefaultEventType     = "Unknown"
	DefaultMagnitudeType = "N/A"
	DefaultCreationInfo  = "N/A"
	DefaultInfo          = "N/A"
)

// TableColumns is the spreadsheet header, in column order.
var TableColumns = []string{
	"Origin Time (UTC)",
	"Lat [°]",
	"Lon [°]",
	"Depth [m]",
	"Event Type",
	"Magnitude",
	"Magnitude Type",
	"Creation Info",
	"Info",
}

// MapBounds is a geographic bounding box in decimal degrees.
type MapBounds struct {
	MinLatitude  float64 `json:"min_latitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLongitude float64 `json:"max_longitude"`
}

// Validate reports whether the box is well formed.
func (b MapBounds) Validate() error {
	if b.MinLatitude < -90 || b.MaxLatitude > 90 {
		return fmt.Errorf("%w: latitude must be within [-90, 90]", ErrInvalidBounds)
	}
	if b.MinLongitude < -180 || b.MaxLongitude > 180 {
		return fmt.Errorf("%w: longitude must be within [-180, 180]", ErrInvalidBounds)
	}
	if b.MinLatitude >= b.MaxLatitude {
		return fmt.Errorf("%w: min latitude %g is not below max latitude %g", ErrInvalidBounds, b.MinLatitude, b.MaxLatitude)
	}
	if b.MinLongitude >= b.MaxLongitude {
		return fmt.Errorf("%w: min longitude %g is not below max longitude %g", ErrInvalidBounds, b.MinLongitude, b.MaxLongitude)
	}
	return nil
}

// MagnitudeRange is an inclusive magnitude interval.
type MagnitudeRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether m lies within [Min, Max].
func (r MagnitudeRange) Contains(m float64) bool {
	return m >= r.Min && m <= r.Max
}

// Query describes one catalog request.
type Query struct {
	Catalog   string         `json:"catalog"`
	Bounds    MapBounds      `json:"bounds"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Magnitude MagnitudeRange `json:"magnitude"`
}

// Title is the map title, e.g. "Earthquakes 1970-01-01 - 2025-02-01".
func (q Query) Title() string {
	return fmt.Sprintf("Earthquakes %s - %s", q.StartTime.UTC().Format(time.DateOnly), q.EndTime.UTC().Format(time.DateOnly))
}

// CreationInfo identifies who produced an origin or magnitude and when.
type CreationInfo struct {
	AgencyID     string    `json:"agency_id,omitempty"`
	Author       string    `json:"author,omitempty"`
	CreationTime time.Time `json:"creation_time,omitempty"`
}

// Origin is one location/time estimate for an event.
type Origin struct {
	Time         time.Time
	Latitude     float64
	Longitude    float64
	Depth        *float64 // metres; nil when unreported
	CreationInfo *CreationInfo
}

// Magnitude is one magnitude reading for an event.
type Magnitude struct {
	Value        *float64
	Type         string
	CreationInfo *CreationInfo
}

// CatalogEvent is an event as decoded from the catalog response, before tabulation.
type CatalogEvent struct {
	ID           string
	Type         string
	Descriptions []string
	Origins      []Origin
	Magnitudes   []Magnitude

	// Invalid is set when the entry could not be decoded. Tabulate skips it.
	Invalid error
}

// EventRecord is one tabulated event row.
type EventRecord struct {
	EventID       string    `json:"event_id"`
	OriginTime    time.Time `json:"origin_time"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Depth         *float64  `json:"depth_m,omitempty"`
	EventType     string    `json:"event_type"`
	Magnitude     float64   `json:"magnitude"`
	MagnitudeType string    `json:"magnitude_type"`
	CreationInfo  string    `json:"creation_info"`
	Info          string    `json:"info"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// EventTable is the ordered, magnitude-filtered set of rows for one run.
type EventTable []EventRecord

// Empty reports whether the table has no rows.
func (t EventTable) Empty() bool { return len(t) == 0 }

// MagnitudeExtent returns the smallest and largest magnitude in the table.
// Both are zero for an empty table.
func (t EventTable) MagnitudeExtent() (lo, hi float64) {
	for i, r := range t {
		if i == 0 || r.Magnitude < lo {
			lo = r.Magnitude
		}
		if i == 0 || r.Magnitude > hi {
			hi = r.Magnitude
		}
	}
	return lo, hi
}
