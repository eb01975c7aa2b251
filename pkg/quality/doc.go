// Package quality tracks per-peripheral link quality.
//
// The tracker is a passive aggregator with no control flow of its own: the
// owning device feeds it RSSI samples, command outcomes, and heartbeat
// results, and it recomputes the ConnectionQuality record and reports
// changes. It also owns the RSSI-driven recovery rule: a ready link whose
// signal drops below the degraded threshold is reported for demotion to
// unstable, and an unstable link whose signal recovers above the recovery
// threshold is reported for promotion back to ready. The two thresholds
// deliberately differ (hysteresis) so a link hovering near one boundary
// does not flap.
package quality
