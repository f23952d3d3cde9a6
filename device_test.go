// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceProfileActiveAt(t *testing.T) {
	type testCase struct {
		// name is the subtest name.
		name string

		// start and end bound the active-hours window.
		start, end int

		// hour is the hour of day to check.
		hour int

		// want is the expected activity.
		want bool
	}

	tests := []testCase{
		{name: "inside window", start: 6, end: 23, hour: 12, want: true},
		{name: "before window", start: 6, end: 23, hour: 3, want: false},
		{name: "start bound inclusive", start: 6, end: 23, hour: 6, want: true},
		{name: "end bound inclusive", start: 6, end: 23, hour: 23, want: true},
		{name: "wrapping window late evening", start: 22, end: 6, hour: 23, want: true},
		{name: "wrapping window early morning", start: 22, end: 6, hour: 2, want: true},
		{name: "wrapping window daytime", start: 22, end: 6, hour: 12, want: false},
		{name: "all day", start: 0, end: 23, hour: 0, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			device := &DeviceProfile{
				ActiveHoursStart: tc.start,
				ActiveHoursEnd:   tc.end,
			}
			at := time.Date(2026, 8, 25, tc.hour, 30, 0, 0, time.UTC)
			assert.Equal(t, tc.want, device.activeAt(at))
		})
	}
}

func TestSessionRecordAccumulatesSavings(t *testing.T) {
	device := &DeviceProfile{Name: "laptop"}
	session := newSession(device, time.Now())

	require.NotEmpty(t, session.ID)
	require.Same(t, device, session.Device)

	session.record(Result{Status: StatusAllowed})
	session.record(Result{Status: StatusBlocked})
	session.record(Result{Status: StatusBlocked})
	session.record(Result{Status: StatusTimeout})

	assert.Len(t, session.Queries, 4)
	assert.InDelta(t, 5.0, session.BytesSavedMB, 0.0001)
	assert.Equal(t, time.Second, session.TimeSaved)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	start := time.Now()
	session := newSession(&DeviceProfile{}, start)
	require.True(t, session.EndTime.IsZero())

	first := start.Add(time.Minute)
	session.close(first)
	assert.Equal(t, first, session.EndTime)

	session.close(start.Add(2 * time.Minute))
	assert.Equal(t, first, session.EndTime)
}

func TestNewFamilyNetwork(t *testing.T) {
	devices := NewFamilyNetwork()
	require.NotEmpty(t, devices)

	macs := make(map[string]bool)
	var restricted int
	for _, device := range devices {
		assert.NotEmpty(t, device.Name)
		assert.NotEmpty(t, device.MACAddress)
		assert.NotEmpty(t, device.Domains)
		assert.Greater(t, device.QueryInterval, time.Duration(0))
		assert.False(t, macs[device.MACAddress], "duplicate MAC %s", device.MACAddress)
		macs[device.MACAddress] = true
		if device.Restricted {
			restricted++
		}
	}
	assert.Equal(t, 1, restricted)
}

func TestNewBusinessNetwork(t *testing.T) {
	devices := NewBusinessNetwork()
	require.NotEmpty(t, devices)
	for _, device := range devices {
		assert.NotEmpty(t, device.Name)
		assert.NotEmpty(t, device.Domains)
		assert.Greater(t, device.QueryInterval, time.Duration(0))
	}
}
