// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	type testCase struct {
		// name is the subtest name.
		name string

		// stats is the snapshot to summarize.
		stats Stats

		// duration is the run duration.
		duration time.Duration

		// want is the expected summary.
		want Metrics
	}

	tests := []testCase{
		{
			name:     "zero stats yield zero rates",
			stats:    Stats{},
			duration: 5 * time.Second,
			want:     Metrics{},
		},

		{
			name: "typical run",
			stats: Stats{
				TotalQueries:     10,
				BlockedQueries:   4,
				AllowedQueries:   5,
				ErrorQueries:     1,
				BandwidthSavedMB: 10,
				TimeSaved:        2 * time.Second,
			},
			duration: 5 * time.Second,
			want: Metrics{
				TotalQueries:       10,
				BlockedQueries:     4,
				AllowedQueries:     5,
				ErrorQueries:       1,
				BlockRatePercent:   40,
				SuccessRatePercent: 90,
				QueriesPerSecond:   2,
				BandwidthSavedMB:   10,
				TimeSavedSeconds:   2,
			},
		},

		{
			name: "zero duration yields zero throughput",
			stats: Stats{
				TotalQueries:   2,
				BlockedQueries: 2,
			},
			duration: 0,
			want: Metrics{
				TotalQueries:       2,
				BlockedQueries:     2,
				BlockRatePercent:   100,
				SuccessRatePercent: 100,
			},
		},

		{
			name: "all errors",
			stats: Stats{
				TotalQueries: 3,
				ErrorQueries: 3,
			},
			duration: time.Second,
			want: Metrics{
				TotalQueries:     3,
				ErrorQueries:     3,
				QueriesPerSecond: 3,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Summarize(tc.stats, tc.duration)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got.BlockRatePercent, 0.0)
			assert.LessOrEqual(t, got.BlockRatePercent, 100.0)
			assert.GreaterOrEqual(t, got.SuccessRatePercent, 0.0)
			assert.LessOrEqual(t, got.SuccessRatePercent, 100.0)
		})
	}
}

func TestPerDevice(t *testing.T) {
	start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	session := newSession(&DeviceProfile{Name: "phone"}, start)
	session.record(Result{Status: StatusBlocked})
	session.record(Result{Status: StatusBlocked})
	session.record(Result{Status: StatusAllowed})
	session.record(Result{Status: StatusTimeout})
	session.close(start.Add(10 * time.Second))

	metrics := PerDevice(session)

	assert.Equal(t, int64(4), metrics.TotalQueries)
	assert.Equal(t, int64(2), metrics.BlockedQueries)
	assert.Equal(t, int64(1), metrics.AllowedQueries)
	assert.Equal(t, int64(1), metrics.ErrorQueries)
	assert.InDelta(t, 50.0, metrics.BlockRatePercent, 0.0001)
	assert.InDelta(t, 75.0, metrics.SuccessRatePercent, 0.0001)
	assert.InDelta(t, 0.4, metrics.QueriesPerSecond, 0.0001)
	assert.InDelta(t, 5.0, metrics.BandwidthSavedMB, 0.0001)
	assert.InDelta(t, 1.0, metrics.TimeSavedSeconds, 0.0001)
}

func TestPerDeviceEmptySession(t *testing.T) {
	session := newSession(&DeviceProfile{}, time.Now())
	metrics := PerDevice(session)
	assert.Equal(t, Metrics{}, metrics)
}

func TestBlockRate(t *testing.T) {
	assert.Zero(t, BlockRate(nil))

	results := []Result{
		{Status: StatusAllowed},
		{Status: StatusBlocked},
		{Status: StatusTimeout},
		{Status: StatusError},
	}

	// Timeouts count as blocked: from the device's point of view the
	// filter ate the query either way.
	assert.InDelta(t, 50.0, BlockRate(results), 0.0001)
}

func TestSuccessRate(t *testing.T) {
	assert.Zero(t, SuccessRate(nil))

	results := []Result{
		{Status: StatusAllowed},
		{Status: StatusBlocked},
		{Status: StatusTimeout},
		{Status: StatusError},
	}
	assert.InDelta(t, 75.0, SuccessRate(results), 0.0001)
}

func TestAverageResponseTime(t *testing.T) {
	assert.Zero(t, AverageResponseTime(nil))

	results := []Result{
		{Status: StatusAllowed, ResponseTime: 10 * time.Millisecond},
		{Status: StatusBlocked, ResponseTime: 20 * time.Millisecond},
		{Status: StatusError, ResponseTime: time.Hour},
	}
	assert.Equal(t, 15*time.Millisecond, AverageResponseTime(results))
}
