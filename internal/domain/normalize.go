package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Normalize validates a raw notification and produces its canonical form.
// It is a pure transform: no I/O, no registry access.
//
// Address and status are required. The status tag "smoking" means alert;
// any other value means clear. OccurredAt defaults to the current clock
// time when the payload carries no parseable occurred_at. Coordinate hints
// fail closed: a payload with an unparseable latitude or longitude is
// rejected rather than defaulted to zero.
func Normalize(raw RawEvent) (NormalizedEvent, error) {
	var payload RawPayload
	if err := json.Unmarshal(raw.Value, &payload); err != nil {
		return NormalizedEvent{}, &ValidationError{Reason: "not a JSON object: " + err.Error()}
	}
	return NormalizePayload(payload)
}

// NormalizePayload validates an already-decoded payload. Exposed separately
// so the HTTP injection endpoint can reuse the exact same rules as the
// Kafka path.
func NormalizePayload(payload RawPayload) (NormalizedEvent, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(payload.Address) == "" {
		verr.MissingFields = append(verr.MissingFields, "address")
	}
	if strings.TrimSpace(payload.Status) == "" {
		verr.MissingFields = append(verr.MissingFields, "status")
	}

	hint, err := parseCoordHint(payload.Latitude, payload.Longitude)
	if err != nil {
		verr.InvalidFields = append(verr.InvalidFields, err.Error())
	}

	occurredAt, ok := parseOccurredAt(payload.OccurredAt)
	if !ok {
		verr.InvalidFields = append(verr.InvalidFields, "occurred_at")
	}

	if len(verr.MissingFields) > 0 || len(verr.InvalidFields) > 0 {
		return NormalizedEvent{}, verr
	}

	return NormalizedEvent{
		Address:    strings.TrimSpace(payload.Address),
		IsAlert:    payload.Status == statusAlertTag,
		Photo:      payload.Photo,
		OccurredAt: occurredAt,
		CoordHint:  hint,
	}, nil
}

// parseCoordHint parses the optional latitude/longitude hint pair. Both
// fields must be present and numeric for the hint to count; a lone or
// malformed field is an error, never a zero coordinate.
func parseCoordHint(latStr, lonStr string) (*Coordinates, error) {
	latStr = strings.TrimSpace(latStr)
	lonStr = strings.TrimSpace(lonStr)
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, &hintError{"latitude/longitude must be provided together"}
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	if errLat != nil {
		return nil, &hintError{"latitude"}
	}
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLon != nil {
		return nil, &hintError{"longitude"}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, &hintError{"latitude/longitude out of range"}
	}
	return &Coordinates{Latitude: lat, Longitude: lon}, nil
}

type hintError struct{ field string }

func (e *hintError) Error() string { return e.field }

// parseOccurredAt parses an optional RFC 3339 instant, defaulting to the
// clock's current time when absent.
func parseOccurredAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return clock.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// PayloadShape summarizes which fields a payload carried, for logging
// rejected events without echoing their content.
func PayloadShape(value []byte) string {
	var payload RawPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return "unparseable"
	}
	fields := make([]string, 0, 6)
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"address", payload.Address != ""},
		{"status", payload.Status != ""},
		{"photo", payload.Photo != ""},
		{"occurred_at", payload.OccurredAt != ""},
		{"latitude", payload.Latitude != ""},
		{"longitude", payload.Longitude != ""},
	} {
		if f.set {
			fields = append(fields, f.name)
		}
	}
	if len(fields) == 0 {
		return "empty"
	}
	return strings.Join(fields, ",")
}
