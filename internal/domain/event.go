package domain

import (
	"context"
	"time"
)

// Status is the live condition of a watch point.
type Status string

const (
	StatusClear Status = "clear"
	StatusAlert Status = "alert"
)

// statusAlertTag is the payload value that maps to StatusAlert.
// Every other tag value means clear.
const statusAlertTag = "smoking"

// RawPayload represents the loosely-typed notification body as delivered by
// the push channel. All fields arrive as strings; validation happens in
// Normalize, never downstream.
type RawPayload struct {
	Address    string `json:"address"`
	Status     string `json:"status"`
	Photo      string `json:"photo,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`
	Latitude   string `json:"latitude,omitempty"`
	Longitude  string `json:"longitude,omitempty"`
}

// RawEvent represents an unprocessed message from the delivery channel.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NormalizedEvent is the validated, canonical form of a notification.
// CoordHint is non-nil only when the payload carried a parseable
// latitude/longitude pair.
type NormalizedEvent struct {
	Address    string
	IsAlert    bool
	Photo      string
	OccurredAt time.Time
	CoordHint  *Coordinates
}

// Status maps the event's alert flag to a watch-point status.
func (e NormalizedEvent) Status() Status {
	if e.IsAlert {
		return StatusAlert
	}
	return StatusClear
}

// WatchPoint is the canonical state of one monitored location. Address is
// the natural key; ID is assigned at first creation and never changes.
type WatchPoint struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
	Status      Status      `json:"status"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Photo       string      `json:"photo,omitempty"`
}

// HistoryEntry is one immutable record of an alert at an address.
// Entries are ordered by Timestamp when order matters, not by arrival.
type HistoryEntry struct {
	Address   string    `json:"address"`
	Photo     string    `json:"photo"`
	Timestamp time.Time `json:"timestamp"`
}

// HourPoint pairs an alert's hour of day with the address it occurred at.
type HourPoint struct {
	Hour    int    `json:"hour"` // 0..23
	Address string `json:"address"`
}

// AggregateSnapshot is a derived summary of history entries inside a
// trailing window. It has no persistent identity and is recomputed on each
// request.
//
// WeekdayCounts is indexed by time.Weekday: slot 0 is Sunday.
type AggregateSnapshot struct {
	WindowStart       time.Time      `json:"window_start"`
	WindowEnd         time.Time      `json:"window_end"`
	PerLocationCounts map[string]int `json:"per_location_counts"`
	HourOfDayPoints   []HourPoint    `json:"hour_of_day_points"`
	WeekdayCounts     [7]int         `json:"weekday_counts"`
}
