// Package domain models watch-point status notifications and the canonical
// entities derived from them.
//
// # Data Source
//
// Notifications originate from camera units that classify activity at a
// monitored location and push a small JSON payload through the delivery
// channel (Kafka in production, HTTP injection in development):
//
//	{"address": "...", "status": "smoking", "photo": "https://...", "occurred_at": "..."}
//
// # Payload Conventions
//
// Status tag:
//
//	"smoking" marks the watch point as alerting. Any other value (the
//	upstream classifier emits "clear", older firmware emits "none") marks
//	it clear. The tag is required; payloads without it are rejected.
//
// Address:
//
//	Free-text location descriptor, e.g. "한성대학교" or "Library, 3rd floor
//	entrance". It is the natural key of a watch point: geocoding resolves
//	it to coordinates once per session, and all later notifications
//	carrying the same text update the same watch point.
//
// Occurrence time:
//
//	Optional RFC 3339 instant. Deliveries may arrive delayed or out of
//	order; when the field is absent the normalization time is used.
//
// Coordinate hints:
//
//	Optional stringly-typed "latitude"/"longitude" fields some camera
//	firmwares attach. When both parse they skip the geocoding round trip.
//	Invalid numerics fail validation outright — a half-parsed hint must
//	never place a pin at (0, 0).
//
// # History
//
// Only alert notifications are historized. A clear notification flips the
// watch point's live status but appends nothing: the history log answers
// "when was smoking detected here", not "when did it stop".
package domain
