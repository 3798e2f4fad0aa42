package render

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/couchcryptid/quake-catalog-etl/internal/render/basemap"
)

// layer holds geometry clipped to the map extent.
type layer struct {
	polygons []orb.Polygon
	lines    []orb.LineString
}

func (l layer) empty() bool {
	return len(l.polygons) == 0 && len(l.lines) == 0
}

// rings returns polygon outlines followed by plain lines.
func (l layer) rings() []orb.LineString {
	out := make([]orb.LineString, 0, len(l.lines))
	for _, p := range l.polygons {
		for _, r := range p {
			out = append(out, orb.LineString(r))
		}
	}
	return append(out, l.lines...)
}

// loadLayer reads a GeoJSON FeatureCollection and clips every feature to
// the bounds. An empty path falls back to the named embedded basemap layer.
// A source without any geometry is an error; geometry that merely falls
// outside the bounds is not.
func loadLayer(path, fallback string, b domain.MapBounds) (layer, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		path = "basemap:" + fallback
		data, err = fs.ReadFile(basemap.FS, fallback)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return layer{}, fmt.Errorf("read layer: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return layer{}, fmt.Errorf("parse layer %s: %w", path, err)
	}
	if !hasGeometry(fc) {
		return layer{}, fmt.Errorf("layer %s: %w", path, domain.ErrEmptyLayer)
	}

	bound := orb.Bound{
		Min: orb.Point{b.MinLongitude, b.MinLatitude},
		Max: orb.Point{b.MaxLongitude, b.MaxLatitude},
	}
	var l layer
	for _, f := range fc.Features {
		l.add(clip.Geometry(bound, f.Geometry))
	}
	return l, nil
}

func hasGeometry(fc *geojson.FeatureCollection) bool {
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if b := f.Geometry.Bound(); !b.IsEmpty() && !b.IsZero() {
			return true
		}
	}
	return false
}

func (l *layer) add(g orb.Geometry) {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) > 0 && len(g[0]) > 2 {
			l.polygons = append(l.polygons, g)
		}
	case orb.Ring:
		l.add(orb.Polygon{g})
	case orb.MultiPolygon:
		for _, p := range g {
			l.add(p)
		}
	case orb.LineString:
		if len(g) > 1 {
			l.lines = append(l.lines, g)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			l.add(ls)
		}
	case orb.Collection:
		for _, c := range g {
			l.add(c)
		}
	}
}
