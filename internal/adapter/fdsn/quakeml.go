package fdsn

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
)

// QuakeML 1.2 response types. Only the elements the tabulator reads are decoded.

type quakeML struct {
	XMLName         xml.Name `xml:"quakeml"`
	EventParameters struct {
		Events []qmlEvent `xml:"event"`
	} `xml:"eventParameters"`
}

type qmlEvent struct {
	PublicID     string           `xml:"publicID,attr"`
	Type         string           `xml:"type"`
	Descriptions []qmlDescription `xml:"description"`
	Origins      []qmlOrigin      `xml:"origin"`
	Magnitudes   []qmlMagnitude   `xml:"magnitude"`
}

type qmlDescription struct {
	Text string `xml:"text"`
	Type string `xml:"type"`
}

type qmlOrigin struct {
	Time         qmlValue         `xml:"time"`
	Latitude     qmlValue         `xml:"latitude"`
	Longitude    qmlValue         `xml:"longitude"`
	Depth        *qmlValue        `xml:"depth"`
	CreationInfo *qmlCreationInfo `xml:"creationInfo"`
}

type qmlMagnitude struct {
	Mag          *qmlValue        `xml:"mag"`
	Type         string           `xml:"type"`
	CreationInfo *qmlCreationInfo `xml:"creationInfo"`
}

type qmlValue struct {
	Value string `xml:"value"`
}

type qmlCreationInfo struct {
	AgencyID     string `xml:"agencyID"`
	Author       string `xml:"author"`
	CreationTime string `xml:"creationTime"`
}

// timeLayouts lists accepted QuakeML time formats. Zone-less values are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// DecodeQuakeML parses a QuakeML document into catalog events, preserving
// document order of events, origins and magnitudes. An entry with unreadable
// values is returned with Invalid set so one bad event does not cost the rest
// of the document.
func DecodeQuakeML(r io.Reader) ([]domain.CatalogEvent, error) {
	var doc quakeML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode quakeml: %w", err)
	}

	events := make([]domain.CatalogEvent, 0, len(doc.EventParameters.Events))
	for i := range doc.EventParameters.Events {
		q := doc.EventParameters.Events[i]
		ev, err := convertEvent(q)
		if err != nil {
			ev = domain.CatalogEvent{ID: q.PublicID, Invalid: err}
		}
		events = append(events, ev)
	}
	return events, nil
}

func convertEvent(q qmlEvent) (domain.CatalogEvent, error) {
	ev := domain.CatalogEvent{
		ID:   q.PublicID,
		Type: strings.TrimSpace(q.Type),
	}
	for _, d := range q.Descriptions {
		if text := strings.TrimSpace(d.Text); text != "" {
			ev.Descriptions = append(ev.Descriptions, text)
		}
	}

	for i, o := range q.Origins {
		origin, err := convertOrigin(o)
		if err != nil {
			return domain.CatalogEvent{}, fmt.Errorf("origin %d: %w", i, err)
		}
		ev.Origins = append(ev.Origins, origin)
	}

	for i, m := range q.Magnitudes {
		mag := domain.Magnitude{
			Type:         strings.TrimSpace(m.Type),
			CreationInfo: convertCreationInfo(m.CreationInfo),
		}
		if m.Mag != nil && strings.TrimSpace(m.Mag.Value) != "" {
			v, err := parseFloat(m.Mag.Value)
			if err != nil {
				return domain.CatalogEvent{}, fmt.Errorf("magnitude %d: %w", i, err)
			}
			mag.Value = &v
		}
		ev.Magnitudes = append(ev.Magnitudes, mag)
	}
	return ev, nil
}

func convertOrigin(o qmlOrigin) (domain.Origin, error) {
	t, err := parseTime(o.Time.Value)
	if err != nil {
		return domain.Origin{}, err
	}
	lat, err := parseFloat(o.Latitude.Value)
	if err != nil {
		return domain.Origin{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := parseFloat(o.Longitude.Value)
	if err != nil {
		return domain.Origin{}, fmt.Errorf("longitude: %w", err)
	}

	origin := domain.Origin{
		Time:         t,
		Latitude:     lat,
		Longitude:    lon,
		CreationInfo: convertCreationInfo(o.CreationInfo),
	}
	if o.Depth != nil && strings.TrimSpace(o.Depth.Value) != "" {
		d, err := parseFloat(o.Depth.Value)
		if err != nil {
			return domain.Origin{}, fmt.Errorf("depth: %w", err)
		}
		origin.Depth = &d
	}
	return origin, nil
}

func convertCreationInfo(ci *qmlCreationInfo) *domain.CreationInfo {
	if ci == nil {
		return nil
	}
	out := &domain.CreationInfo{
		AgencyID: strings.TrimSpace(ci.AgencyID),
		Author:   strings.TrimSpace(ci.Author),
	}
	// A malformed creation time is informational only; drop it.
	if t, err := parseTime(ci.CreationTime); err == nil {
		out.CreationTime = t
	}
	return out
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
