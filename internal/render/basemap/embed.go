// Package basemap embeds the default land and country-border layers drawn
// under the event markers. Coastlines are coarse, roughly one vertex per
// degree along the Americas and coarser elsewhere; borders cover North and
// Central America and Hispaniola.
package basemap

import "embed"

// Layer file names inside FS.
const (
	Land    = "land.geojson"
	Borders = "borders.geojson"
)

// FS contains the GeoJSON layers embedded at compile time.
//
//go:embed *.geojson
var FS embed.FS
