// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Defaults for the [*Simulator] pacing knobs set by [NewSimulator].
const (
	// DefaultStartStagger spaces out driver launches so devices do
	// not all fire their first query at the same instant.
	DefaultStartStagger = 500 * time.Millisecond

	// DefaultIdleRecheck is how long an inactive device sleeps
	// before re-checking its active-hours window.
	DefaultIdleRecheck = time.Minute

	// DefaultMaxQueryWait caps the exponential inter-query wait so a
	// long tail sample cannot stall a driver.
	DefaultMaxQueryWait = 30 * time.Second
)

// ErrNoDevices means that [*Simulator.Run] was called before any device
// was added.
var ErrNoDevices = errors.New("simulation has no devices")

// Stats aggregates query counters across every driver of one run. A
// fresh Stats is created per run; nothing carries over between runs.
//
// During a run the Stats is exclusively owned by the aggregator
// goroutine: drivers publish their results over a channel and never
// touch the counters directly, so no locking is needed.
type Stats struct {
	// TotalQueries counts every query issued.
	TotalQueries int64

	// BlockedQueries counts queries denied with NXDOMAIN.
	BlockedQueries int64

	// AllowedQueries counts queries the server resolved.
	AllowedQueries int64

	// ErrorQueries counts failed queries. Timeouts share this
	// bucket, so the three buckets always sum to TotalQueries.
	ErrorQueries int64

	// BandwidthSavedMB estimates total bandwidth saved by blocking.
	BandwidthSavedMB float64

	// TimeSaved estimates total time saved by blocking.
	TimeSaved time.Duration
}

// count adds one query result to the counters.
func (st *Stats) count(res Result) {
	st.TotalQueries++
	switch res.Status {
	case StatusBlocked:
		st.BlockedQueries++
		st.BandwidthSavedMB += bandwidthSavedPerBlockMB
		st.TimeSaved += timeSavedPerBlock
	case StatusAllowed:
		st.AllowedQueries++
	default:
		st.ErrorQueries++
	}
}

// ProgressFunc receives short human-readable progress lines. It is
// invoked synchronously from whichever driver goroutine produced the
// event, so implementations must be fast and safe for concurrent use.
type ProgressFunc func(msg string)

// RunResult is what [*Simulator.Run] returns after every driver has
// stopped.
type RunResult struct {
	// RunID uniquely identifies the run.
	RunID string

	// Duration is the configured run duration.
	Duration time.Duration

	// DevicesSimulated is the number of device drivers that ran.
	DevicesSimulated int

	// Sessions contains one session per device, in the order the
	// devices were added.
	Sessions []*Session

	// Stats is the final aggregate snapshot.
	Stats Stats

	// Metrics is the summary derived from Stats and Duration.
	Metrics Metrics
}

// Simulator drives one concurrent probe loop per device against a DNS
// filtering endpoint.
//
// Construct using [NewSimulator]. Fields may be adjusted before calling
// [*Simulator.Run] but not while a run is in progress. A Simulator owns
// its own device list and running state, so independent simulations can
// run side by side.
type Simulator struct {
	// Client issues the DNS queries. Shared by all drivers.
	//
	// Set by [NewSimulator] to the user-provided value.
	Client *Client

	// Logger optionally logs run lifecycle and blocked queries.
	// Nil disables logging.
	Logger logrus.FieldLogger

	// StartStagger is the delay between driver launches.
	//
	// Set by [NewSimulator] to [DefaultStartStagger].
	StartStagger time.Duration

	// IdleRecheck is the sleep between active-hours re-checks.
	//
	// Set by [NewSimulator] to [DefaultIdleRecheck].
	IdleRecheck time.Duration

	// MaxQueryWait caps the inter-query wait.
	//
	// Set by [NewSimulator] to [DefaultMaxQueryWait].
	MaxQueryWait time.Duration

	// devices is the list of profiles to simulate.
	devices []*DeviceProfile

	// timeNow returns the current time; tests override it to pin
	// the hour of day.
	timeNow func() time.Time
}

// NewSimulator creates a new [*Simulator] using the given client.
func NewSimulator(client *Client) *Simulator {
	return &Simulator{
		Client:       client,
		StartStagger: DefaultStartStagger,
		IdleRecheck:  DefaultIdleRecheck,
		MaxQueryWait: DefaultMaxQueryWait,
		timeNow:      time.Now,
	}
}

// AddDevice adds a device profile to the simulation.
func (s *Simulator) AddDevice(device *DeviceProfile) {
	s.devices = append(s.devices, device)
}

// Run simulates traffic from every added device for the given duration
// and returns the aggregate result.
//
// One driver goroutine runs per device; launches are staggered by
// StartStagger. Run blocks until every driver has stopped and the
// aggregator has drained all pending results, so the returned Stats and
// Sessions are safe to read immediately: no goroutine is still writing
// to them after Run returns.
//
// Run stops early when ctx is canceled; cancellation is observed at
// loop and sleep boundaries, so the worst-case latency is one query
// timeout plus one capped sleep. Per-query failures never stop a
// driver, and a panic in one driver does not halt the others.
func (s *Simulator) Run(ctx context.Context, duration time.Duration, progress ProgressFunc) (*RunResult, error) {
	if len(s.devices) == 0 {
		return nil, ErrNoDevices
	}

	runID := uuid.NewString()
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"run_id":   runID,
			"devices":  len(s.devices),
			"duration": duration,
		}).Info("starting traffic simulation")
	}
	if progress != nil {
		progress(fmt.Sprintf("Starting simulation with %d devices for %s", len(s.devices), duration))
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	// The aggregator exclusively owns the run's Stats: it consumes
	// results until the channel closes, then publishes the final
	// snapshot.
	results := make(chan Result, len(s.devices))
	snapshot := make(chan Stats, 1)
	go func() {
		var stats Stats
		for res := range results {
			stats.count(res)
		}
		snapshot <- stats
	}()

	// Launch one driver per device, staggered.
	sessions := make([]*Session, 0, len(s.devices))
	wg := &sync.WaitGroup{}
	for idx, device := range s.devices {
		if idx > 0 {
			sleepContext(ctx, s.StartStagger)
		}
		session := newSession(device, s.timeNow())
		sessions = append(sessions, session)
		wg.Go(func() {
			s.runDriver(ctx, session, results, progress)
		})
	}

	// Full barrier: join every driver, then stop the aggregator and
	// wait for the final snapshot.
	wg.Wait()
	close(results)
	stats := <-snapshot
	runtimex.Assert(len(sessions) == len(s.devices))

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"run_id":  runID,
			"queries": stats.TotalQueries,
			"blocked": stats.BlockedQueries,
		}).Info("traffic simulation finished")
	}

	return &RunResult{
		RunID:            runID,
		Duration:         duration,
		DevicesSimulated: len(s.devices),
		Sessions:         sessions,
		Stats:            stats,
		Metrics:          Summarize(stats, duration),
	}, nil
}

// runDriver is the per-device probe loop. It owns the session
// exclusively and publishes every result to the aggregator.
func (s *Simulator) runDriver(ctx context.Context, session *Session, results chan<- Result, progress ProgressFunc) {
	// Contain driver faults: a panicking driver closes its session
	// and dies alone instead of taking down the run.
	defer func() {
		if r := recover(); r != nil && s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"device": session.Device.Name,
				"panic":  r,
			}).Error("device driver panicked")
		}
		session.close(s.timeNow())
	}()

	device := session.Device
	for {
		if ctx.Err() != nil {
			return
		}

		// Outside the active-hours window the device stays quiet
		// and re-checks later.
		if !device.activeAt(s.timeNow()) {
			if !sleepContext(ctx, s.IdleRecheck) {
				return
			}
			continue
		}

		// Query one domain picked uniformly from the device's set.
		domain := device.Domains[rand.IntN(len(device.Domains))]
		res := s.Client.Query(ctx, domain, TypeA)
		session.record(res)
		results <- res

		if res.Status == StatusBlocked {
			if progress != nil {
				progress(fmt.Sprintf("[%s] BLOCKED %s (%.1fms)",
					device.Name, domain, durationMs(res.ResponseTime)))
			}
			if s.Logger != nil {
				s.Logger.WithFields(logrus.Fields{
					"device": device.Name,
					"domain": domain,
				}).Debug("query blocked")
			}
		}

		// Pace the next query: exponential wait with the device's
		// mean cadence, capped to avoid pathological stalls.
		wait := time.Duration(rand.ExpFloat64() * float64(device.QueryInterval))
		if !sleepContext(ctx, min(wait, s.MaxQueryWait)) {
			return
		}
	}
}

// sleepContext sleeps for d or until ctx is done, reporting whether ctx
// is still alive. A nonpositive d only checks the context.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
