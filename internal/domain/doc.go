// Package domain models earthquake catalog data fetched from FDSN event services.
//
// # Data Source
//
// Events come from an FDSN web service (fdsnws-event, version 1) such as
// IRIS, USGS or EMSC. The service answers a bounding-box query with a
// QuakeML 1.2 document; the fdsn adapter decodes it into [CatalogEvent]
// values, which are the raw input to this package.
//
// # QuakeML Conventions
//
// A single event may carry several competing origins (location/time
// estimates) and several magnitude readings. The tabulation policy is to
// use the first of each, in document order. The preferred origin and
// magnitude IDs that some catalogs provide are ignored.
//
// Units:
//
//	Origin depth is reported in metres (QuakeML), not kilometres (FDSN text format).
//	Latitude and longitude are WGS-84 decimal degrees.
//	Origin time is UTC; some services omit the trailing "Z".
//
// # Field Defaults
//
// Optional fields fall back to explicit placeholders when the source value
// is missing or blank:
//
//	Event Type      "Unknown"
//	Magnitude Type  "N/A"
//	Creation Info   "N/A"
//	Info            "N/A"   (first event description text)
//
// # Magnitude Filter
//
// The catalog query already carries minmagnitude/maxmagnitude. Tabulation
// applies the same inclusive range once more so that services which ignore
// or round the query bounds still produce a table inside the range.
//
// # Table Schema
//
// [TableColumns] is the fixed nine-column header written to the
// spreadsheet. Column order matches the field order of [EventRecord].
package domain
