// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import "time"

// Metrics is a derived, read-only summary computed from a finalized
// [Stats] snapshot and a duration. The percentage fields are always
// within [0, 100] and are zero when no queries were issued.
type Metrics struct {
	// TotalQueries, BlockedQueries, AllowedQueries, and ErrorQueries
	// mirror the underlying counters.
	TotalQueries   int64
	BlockedQueries int64
	AllowedQueries int64
	ErrorQueries   int64

	// BlockRatePercent is blocked over total.
	BlockRatePercent float64

	// SuccessRatePercent is answered (blocked plus allowed) over
	// total.
	SuccessRatePercent float64

	// QueriesPerSecond is total over the run duration.
	QueriesPerSecond float64

	// BandwidthSavedMB estimates bandwidth saved by blocking.
	BandwidthSavedMB float64

	// TimeSavedSeconds estimates time saved by blocking.
	TimeSavedSeconds float64
}

// Summarize reduces a [Stats] snapshot and a run duration into
// [Metrics]. A zero total or a zero duration yields zero rates rather
// than a division fault.
func Summarize(stats Stats, duration time.Duration) Metrics {
	m := Metrics{
		TotalQueries:     stats.TotalQueries,
		BlockedQueries:   stats.BlockedQueries,
		AllowedQueries:   stats.AllowedQueries,
		ErrorQueries:     stats.ErrorQueries,
		BandwidthSavedMB: stats.BandwidthSavedMB,
		TimeSavedSeconds: stats.TimeSaved.Seconds(),
	}
	if stats.TotalQueries > 0 {
		total := float64(stats.TotalQueries)
		m.BlockRatePercent = float64(stats.BlockedQueries) / total * 100
		m.SuccessRatePercent = float64(stats.BlockedQueries+stats.AllowedQueries) / total * 100
	}
	if duration > 0 {
		m.QueriesPerSecond = float64(stats.TotalQueries) / duration.Seconds()
	}
	return m
}

// PerDevice computes the same metrics scoped to a single session, for
// device-level breakdowns in the final report.
func PerDevice(session *Session) Metrics {
	var stats Stats
	for _, res := range session.Queries {
		stats.count(res)
	}
	var duration time.Duration
	if !session.EndTime.IsZero() {
		duration = session.EndTime.Sub(session.StartTime)
	}
	return Summarize(stats, duration)
}

// BlockRate returns the percentage of results that were blocked or
// timed out, treating a timeout as the filter eating the query. Returns
// zero for an empty slice.
func BlockRate(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var blocked int
	for _, res := range results {
		if res.Status == StatusBlocked || res.Status == StatusTimeout {
			blocked++
		}
	}
	return float64(blocked) / float64(len(results)) * 100
}

// SuccessRate returns the percentage of results that did not fail.
// Returns zero for an empty slice.
func SuccessRate(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var successful int
	for _, res := range results {
		if res.Status != StatusError {
			successful++
		}
	}
	return float64(successful) / float64(len(results)) * 100
}

// AverageResponseTime returns the mean response time of the results
// that did not fail, or zero when there are none.
func AverageResponseTime(results []Result) time.Duration {
	var total time.Duration
	var measured int
	for _, res := range results {
		if res.Status == StatusError {
			continue
		}
		total += res.ResponseTime
		measured++
	}
	if measured == 0 {
		return 0
	}
	return total / time.Duration(measured)
}

// durationMs converts a duration to fractional milliseconds for
// human-readable output.
func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
