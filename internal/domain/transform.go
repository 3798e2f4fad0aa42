package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tabulate converts catalog events into table rows.
//
// For each event the first origin and first magnitude are used. Events
// lacking either, or marked Invalid by the decoder, are reported as
// RecordErrors and skipped. Events whose magnitude falls outside rng are
// dropped without error. Row order follows the input order.
func Tabulate(events []CatalogEvent, rng MagnitudeRange) (EventTable, []error) {
	table := make(EventTable, 0, len(events))
	var errs []error
	fetchedAt := clock.Now().UTC()

	for i := range events {
		rec, err := ToRecord(events[i])
		if err != nil {
			errs = append(errs, &RecordError{Index: i, EventID: events[i].ID, Err: err})
			continue
		}
		if !rng.Contains(rec.Magnitude) {
			continue
		}
		rec.FetchedAt = fetchedAt
		table = append(table, rec)
	}
	return table, errs
}

// ToRecord extracts the tabulated fields of a single event and applies the
// field defaults.
func ToRecord(ev CatalogEvent) (EventRecord, error) {
	if ev.Invalid != nil {
		return EventRecord{}, fmt.Errorf("%w: %w", ErrMalformedEvent, ev.Invalid)
	}
	if len(ev.Origins) == 0 {
		return EventRecord{}, ErrMissingOrigin
	}
	if len(ev.Magnitudes) == 0 || ev.Magnitudes[0].Value == nil {
		return EventRecord{}, ErrMissingMagnitude
	}
	origin := ev.Origins[0]
	mag := ev.Magnitudes[0]

	var info string
	if len(ev.Descriptions) > 0 {
		info = ev.Descriptions[0]
	}

	return EventRecord{
		EventID:       ev.ID,
		OriginTime:    origin.Time.UTC(),
		Latitude:      origin.Latitude,
		Longitude:     origin.Longitude,
		Depth:         origin.Depth,
		EventType:     orDefault(ev.Type, DefaultEventType),
		Magnitude:     *mag.Value,
		MagnitudeType: orDefault(mag.Type, DefaultMagnitudeType),
		CreationInfo:  orDefault(origin.CreationInfo.String(), DefaultCreationInfo),
		Info:          orDefault(info, DefaultInfo),
	}, nil
}

// String renders the non-empty fields as "agency_id=US, author=us, ...".
// A nil receiver renders as the empty string.
func (c *CreationInfo) String() string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.AgencyID != "" {
		parts = append(parts, "agency_id="+c.AgencyID)
	}
	if c.Author != "" {
		parts = append(parts, "author="+c.Author)
	}
	if !c.CreationTime.IsZero() {
		parts = append(parts, "creation_time="+c.CreationTime.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, ", ")
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
