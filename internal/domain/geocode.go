package domain

import (
	"context"
	"log/slog"
)

// MinPlaceConfidence is the lowest provider confidence accepted as a place
// description.
const MinPlaceConfidence = 0.5

// EnrichWithPlace fills a missing Info field with the reverse-geocoded place
// near the epicentre. Records that already carry a catalog description are
// returned unchanged, as are all records when geocoder is nil. Geocoding
// failures and matches below MinPlaceConfidence leave the default in place.
func EnrichWithPlace(ctx context.Context, rec EventRecord, geocoder Geocoder, logger *slog.Logger) EventRecord {
	if geocoder == nil || rec.Info != DefaultInfo {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Latitude, rec.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", rec.EventID,
			"lat", rec.Latitude,
			"lon", rec.Longitude,
			"error", err,
		)
		return rec
	}
	if result.Confidence < MinPlaceConfidence {
		if result.PlaceName != "" {
			logger.Debug("ignoring low-confidence place",
				"event_id", rec.EventID,
				"place", result.PlaceName,
				"confidence", result.Confidence,
			)
		}
		return rec
	}
	switch {
	case result.FormattedAddress != "":
		rec.Info = result.FormattedAddress
	case result.PlaceName != "":
		rec.Info = result.PlaceName
	}
	return rec
}

// EnrichTable applies EnrichWithPlace to every row.
func EnrichTable(ctx context.Context, table EventTable, geocoder Geocoder, logger *slog.Logger) EventTable {
	if geocoder == nil {
		return table
	}
	out := make(EventTable, len(table))
	for i := range table {
		out[i] = EnrichWithPlace(ctx, table[i], geocoder, logger)
	}
	return out
}
