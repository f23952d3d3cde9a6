// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"time"

	"github.com/google/uuid"
)

// DeviceType identifies the kind of simulated network device.
type DeviceType string

// Known [DeviceType] values.
const (
	DeviceSmartphone    DeviceType = "smartphone"
	DeviceLaptop        DeviceType = "laptop"
	DeviceTablet        DeviceType = "tablet"
	DeviceSmartTV       DeviceType = "smart_tv"
	DeviceGamingConsole DeviceType = "gaming_console"
	DeviceIoT           DeviceType = "iot_device"
	DeviceDesktop       DeviceType = "desktop"
)

// DeviceProfile statically describes a simulated network device and its
// browsing pattern. A profile is immutable after construction and may be
// shared across simulation runs.
type DeviceProfile struct {
	// Name is the human-readable device name.
	Name string

	// Type is the kind of device.
	Type DeviceType

	// MACAddress is the device's link-layer identity.
	MACAddress string

	// IPAddress is the device's address on the simulated network.
	IPAddress string

	// UserAgent identifies the device's client software.
	UserAgent string

	// Domains is the ordered set of candidate domains the device
	// queries. Drivers pick from it uniformly at random.
	Domains []string

	// QueryInterval is the mean time between queries. The actual
	// wait is drawn from an exponential distribution with this mean.
	QueryInterval time.Duration

	// ActiveHoursStart and ActiveHoursEnd bound the hours of day
	// (inclusive) during which the device issues queries. A window
	// with start > end wraps past midnight.
	ActiveHoursStart int
	ActiveHoursEnd   int

	// Restricted marks devices subject to parental-control
	// filtering policies.
	Restricted bool
}

// activeAt reports whether the device issues queries at time t.
func (d *DeviceProfile) activeAt(t time.Time) bool {
	hour := t.Hour()
	if d.ActiveHoursStart <= d.ActiveHoursEnd {
		return hour >= d.ActiveHoursStart && hour <= d.ActiveHoursEnd
	}
	return hour >= d.ActiveHoursStart || hour <= d.ActiveHoursEnd
}

// Estimated savings per blocked query. Blocking an ad or tracker saves
// the payload it would have fetched and the time spent rendering it.
const (
	bandwidthSavedPerBlockMB = 2.5
	timeSavedPerBlock        = 500 * time.Millisecond
)

// Session records the activity of one device during a single simulation
// run. A session is exclusively owned and mutated by the device's
// driver; other goroutines may only read it after [*Simulator.Run]
// returns.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// Device is the profile this session belongs to.
	Device *DeviceProfile

	// StartTime is when the driver started.
	StartTime time.Time

	// EndTime is when the driver stopped. Zero while running; set
	// exactly once.
	EndTime time.Time

	// Queries is the append-only sequence of query results.
	Queries []Result

	// BytesSavedMB estimates the bandwidth saved by blocked queries.
	BytesSavedMB float64

	// TimeSaved estimates the time saved by blocked queries.
	TimeSaved time.Duration
}

// newSession creates the [*Session] for one driver.
func newSession(device *DeviceProfile, start time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Device:    device,
		StartTime: start,
	}
}

// record appends a query result and accumulates blocking savings.
func (s *Session) record(res Result) {
	s.Queries = append(s.Queries, res)
	if res.Status == StatusBlocked {
		s.BytesSavedMB += bandwidthSavedPerBlockMB
		s.TimeSaved += timeSavedPerBlock
	}
}

// close marks the session finished. Only the first call takes effect.
func (s *Session) close(end time.Time) {
	if s.EndTime.IsZero() {
		s.EndTime = end
	}
}

// NewFamilyNetwork returns device profiles modeling a typical household:
// two adult devices, a teenager's desktop, a kids' tablet under parental
// controls, a smart TV, and an IoT thermostat. The domain sets mix real
// content with common ad and tracker names so a filtering server has
// something to block.
func NewFamilyNetwork() []*DeviceProfile {
	return []*DeviceProfile{
		{
			Name:       "Parent phone",
			Type:       DeviceSmartphone,
			MACAddress: "02:00:00:00:01:01",
			IPAddress:  "192.168.1.101",
			UserAgent:  "iPhone15,2",
			Domains: []string{
				"cnn.com", "bbc.com", "reuters.com",
				"googlesyndication.com", "doubleclick.net",
				"amazon.com", "amazon-adsystem.com",
				"linkedin.com", "googletagmanager.com",
			},
			QueryInterval:    1500 * time.Millisecond,
			ActiveHoursStart: 6,
			ActiveHoursEnd:   23,
		},
		{
			Name:       "Parent laptop",
			Type:       DeviceLaptop,
			MACAddress: "02:00:00:00:01:02",
			IPAddress:  "192.168.1.102",
			UserAgent:  "Chrome/124.0",
			Domains: []string{
				"pinterest.com", "etsy.com", "target.com",
				"facebook.com", "instagram.com",
				"googlesyndication.com", "doubleclick.net",
				"healthline.com", "googletagmanager.com",
			},
			QueryInterval:    2 * time.Second,
			ActiveHoursStart: 6,
			ActiveHoursEnd:   23,
		},
		{
			Name:       "Teen gaming desktop",
			Type:       DeviceDesktop,
			MACAddress: "02:00:00:00:01:03",
			IPAddress:  "192.168.1.103",
			UserAgent:  "Steam",
			Domains: []string{
				"steampowered.com", "epicgames.com", "twitch.tv",
				"youtube.com", "discord.com", "reddit.com",
				"googlesyndication.com", "doubleclick.net",
				"googletagmanager.com",
			},
			QueryInterval:    time.Second,
			ActiveHoursStart: 14,
			ActiveHoursEnd:   23,
		},
		{
			Name:       "Kids tablet",
			Type:       DeviceTablet,
			MACAddress: "02:00:00:00:01:04",
			IPAddress:  "192.168.1.104",
			UserAgent:  "iPad",
			Domains: []string{
				"pbskids.org", "roblox.com", "minecraft.net",
				"scratch.mit.edu", "youtube.com",
				"googlesyndication.com", "doubleclick.net",
				"googletagmanager.com",
			},
			QueryInterval:    3 * time.Second,
			ActiveHoursStart: 7,
			ActiveHoursEnd:   20,
			Restricted:       true,
		},
		{
			Name:       "Living room TV",
			Type:       DeviceSmartTV,
			MACAddress: "02:00:00:00:01:05",
			IPAddress:  "192.168.1.105",
			UserAgent:  "SmartTV",
			Domains: []string{
				"netflix.com", "hulu.com", "primevideo.com",
				"youtube.com", "roku.com",
				"googlesyndication.com", "doubleclick.net",
			},
			QueryInterval:    5 * time.Second,
			ActiveHoursStart: 6,
			ActiveHoursEnd:   23,
		},
		{
			Name:       "Thermostat",
			Type:       DeviceIoT,
			MACAddress: "02:00:00:00:01:06",
			IPAddress:  "192.168.1.106",
			UserAgent:  "IoT",
			Domains: []string{
				"nest.com", "pool.ntp.org", "time.google.com",
				"googletagmanager.com",
			},
			QueryInterval:    30 * time.Second,
			ActiveHoursStart: 0,
			ActiveHoursEnd:   23,
		},
	}
}

// NewBusinessNetwork returns device profiles modeling a small office
// during business hours.
func NewBusinessNetwork() []*DeviceProfile {
	return []*DeviceProfile{
		{
			Name:       "Reception laptop",
			Type:       DeviceLaptop,
			MACAddress: "02:00:00:00:02:01",
			IPAddress:  "192.168.1.201",
			UserAgent:  "Chrome/124.0",
			Domains: []string{
				"office.com", "outlook.com", "microsoft.com",
				"salesforce.com", "hubspot.com",
				"googlesyndication.com", "doubleclick.net",
				"googletagmanager.com", "amazon-adsystem.com",
			},
			QueryInterval:    1500 * time.Millisecond,
			ActiveHoursStart: 8,
			ActiveHoursEnd:   18,
		},
		{
			Name:       "Manager phone",
			Type:       DeviceSmartphone,
			MACAddress: "02:00:00:00:02:02",
			IPAddress:  "192.168.1.202",
			UserAgent:  "iPhone15,2",
			Domains: []string{
				"linkedin.com", "zoom.us", "reuters.com",
				"googlesyndication.com", "facebook.com",
				"doubleclick.net", "scorecardresearch.com",
			},
			QueryInterval:    2 * time.Second,
			ActiveHoursStart: 7,
			ActiveHoursEnd:   21,
		},
		{
			Name:       "Conference room display",
			Type:       DeviceSmartTV,
			MACAddress: "02:00:00:00:02:03",
			IPAddress:  "192.168.1.203",
			UserAgent:  "MeetingDisplay",
			Domains: []string{
				"zoom.us", "teams.microsoft.com", "webex.com",
				"youtube.com",
				"googlesyndication.com", "doubleclick.net",
				"googletagmanager.com",
			},
			QueryInterval:    10 * time.Second,
			ActiveHoursStart: 8,
			ActiveHoursEnd:   18,
		},
	}
}
