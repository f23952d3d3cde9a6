// SPDX-License-Identifier: GPL-3.0-or-later

// Package dnsim contains infrastructure to probe DNS filtering servers
// and to simulate the DNS traffic of a small network against them.
//
// The low-level building block is the wire codec: [EncodeQuery] produces
// a raw DNS-over-UDP query and [DecodeResponse] extracts the response
// code and any IPv4 answers from a raw response. The codec implements a
// restricted RFC 1035 subset (single question, A answers, 512-byte
// datagrams, no EDNS) because that is the surface a filtering resolver
// exposes to the simplest possible client.
//
// The [*Client] performs one UDP round trip per query and classifies the
// outcome into a [Result]:
//
//	client := dnsim.NewClient(&net.Dialer{}, "127.0.0.1:8053")
//	res := client.Query(ctx, "doubleclick.net", dnsim.TypeA)
//	if res.Status == dnsim.StatusBlocked {
//		// the filter answered NXDOMAIN
//	}
//
// A query never fails with an error: timeouts, transport faults, and
// malformed responses all surface as the Status and ErrorMessage of the
// returned [Result].
//
// The [*Simulator] drives one concurrent probe loop per [*DeviceProfile],
// each picking domains from the device's browsing set, honoring the
// device's active hours, and pacing queries with an exponentially
// distributed wait. Use [NewFamilyNetwork] or [NewBusinessNetwork] for
// realistic canned fleets:
//
//	sim := dnsim.NewSimulator(client)
//	for _, device := range dnsim.NewFamilyNetwork() {
//		sim.AddDevice(device)
//	}
//	result, err := sim.Run(ctx, 2*time.Minute, nil)
//
// [*Simulator.Run] blocks until every device driver has stopped, so the
// returned [Stats] and [Session] values are safe to read immediately.
// [Summarize] and [PerDevice] reduce them into reporting [Metrics].
//
// The code in this package grew out of end-to-end test tooling for a
// DNS filtering service, where the measurement scripts were promoted
// into a reusable library.
package dnsim
