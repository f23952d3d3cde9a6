// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultQueryTimeout is the per-query timeout used by [NewClient].
const DefaultQueryTimeout = 5 * time.Second

// NetDialer abstracts over [*net.Dialer].
type NetDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Status classifies the outcome of a single query.
type Status string

// Possible [Status] values.
const (
	// StatusAllowed means the server resolved the domain (RCODE 0).
	StatusAllowed Status = "ALLOWED"

	// StatusBlocked means the server denied the domain with NXDOMAIN.
	StatusBlocked Status = "BLOCKED"

	// StatusTimeout means no reply arrived within the query timeout.
	StatusTimeout Status = "TIMEOUT"

	// StatusError covers transport faults, malformed responses, and
	// any RCODE other than success or NXDOMAIN.
	StatusError Status = "ERROR"
)

// Result is the outcome of a single DNS query. A [Result] is immutable
// once produced by [*Client.Query].
type Result struct {
	// Domain is the domain that was queried.
	Domain string

	// QueryType is the query type that was sent.
	QueryType QueryType

	// Status classifies the outcome.
	Status Status

	// ResponseCode is the RCODE of the response, or -1 when no
	// response was decoded.
	ResponseCode int

	// ResponseTime is the elapsed wall-clock time from send to
	// receive. For timeouts it equals the configured timeout.
	ResponseTime time.Duration

	// Timestamp is when the query started.
	Timestamp time.Time

	// ResolvedIPs contains the IPv4 addresses of any A answers, in
	// message order. Non-empty only when Status is [StatusAllowed].
	ResolvedIPs []string

	// ErrorMessage describes the failure when Status is
	// [StatusTimeout] or [StatusError].
	ErrorMessage string

	// ServerUsed is the "host:port" endpoint that was queried.
	ServerUsed string
}

// Client issues DNS queries against a filtering server using one
// transient UDP socket per query.
//
// Construct using [NewClient].
type Client struct {
	// Dialer is the [NetDialer] used to create per-query sockets.
	//
	// Set by [NewClient] to the user-provided value.
	Dialer NetDialer

	// Endpoint is the "host:port" of the server under test.
	//
	// Set by [NewClient] to the user-provided value.
	Endpoint string

	// Timeout bounds a single query round trip.
	//
	// Set by [NewClient] to [DefaultQueryTimeout].
	Timeout time.Duration
}

// NewClient creates a new [*Client].
func NewClient(dialer NetDialer, endpoint string) *Client {
	return &Client{
		Dialer:   dialer,
		Endpoint: endpoint,
		Timeout:  DefaultQueryTimeout,
	}
}

// Query performs one DNS query round trip and classifies the outcome.
//
// A query is exactly one datagram out and at most one datagram back;
// there are no retries. The reply read is capped at 512 bytes. Every
// outcome is represented in the returned [Result]: this method never
// returns an error and never panics on malformed input, so a failing
// query cannot abort a simulation.
func (c *Client) Query(ctx context.Context, domain string, qtype QueryType) Result {
	start := time.Now()
	res := Result{
		Domain:       domain,
		QueryType:    qtype,
		Status:       StatusError,
		ResponseCode: -1,
		Timestamp:    start,
		ServerUsed:   c.Endpoint,
	}

	// 1. Serialize the query.
	rawQuery, err := EncodeQuery(domain, qtype)
	if err != nil {
		res.ResponseTime = time.Since(start)
		res.ErrorMessage = err.Error()
		return res
	}

	// 2. Bound the whole round trip by the configured timeout.
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	// 3. Create the transient socket scoped to this call.
	conn, err := c.Dialer.DialContext(ctx, "udp", c.Endpoint)
	if err != nil {
		res.ResponseTime = time.Since(start)
		res.ErrorMessage = err.Error()
		return res
	}

	// 4. Make sure we react to the context being canceled early. The
	// goroutine also guarantees the socket is closed on every exit
	// path, because the deferred cancel fires regardless.
	go func() {
		defer conn.Close()
		<-ctx.Done()
	}()

	// 5. Use the context deadline to limit the query lifetime.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// 6. Send the query.
	if _, err := conn.Write(rawQuery); err != nil {
		res.ResponseTime = time.Since(start)
		res.ErrorMessage = err.Error()
		return res
	}

	// 7. Wait for a single reply datagram.
	buff := make([]byte, maxDatagramSize)
	count, err := conn.Read(buff)
	if err != nil {
		if queryTimedOut(ctx, err) {
			res.Status = StatusTimeout
			res.ResponseTime = c.Timeout
			res.ErrorMessage = "query timed out"
			return res
		}
		res.ResponseTime = time.Since(start)
		res.ErrorMessage = err.Error()
		return res
	}
	res.ResponseTime = time.Since(start)

	// 8. Decode the reply and classify the outcome.
	rcode, addrs, err := DecodeResponse(buff[:count])
	if err != nil {
		res.ErrorMessage = err.Error()
		return res
	}
	res.ResponseCode = rcode
	switch rcode {
	case rcodeNoError:
		res.Status = StatusAllowed
		res.ResolvedIPs = addrs
	case rcodeNXDomain:
		res.Status = StatusBlocked
	default:
		res.Status = StatusError
		res.ErrorMessage = fmt.Sprintf("server returned response code %d", rcode)
	}
	return res
}

// queryTimedOut reports whether a read failure was caused by the query
// deadline rather than by a transport fault.
func queryTimedOut(ctx context.Context, err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// The watchdog goroutine closes the socket when the context
	// expires, so the read may fail with net.ErrClosed instead.
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// BatchQuery performs one query per domain, sequentially and in input
// order. The returned slice has the same length as domains.
func (c *Client) BatchQuery(ctx context.Context, domains []string, qtype QueryType) []Result {
	results := make([]Result, 0, len(domains))
	for _, domain := range domains {
		results = append(results, c.Query(ctx, domain, qtype))
	}
	return results
}

// BenchmarkResult summarizes repeated queries for the same domain.
type BenchmarkResult struct {
	// Domain is the domain that was queried.
	Domain string

	// Iterations is the number of queries performed.
	Iterations int

	// SuccessfulQueries counts queries answered by the server,
	// whether allowed or blocked.
	SuccessfulQueries int

	// SuccessRatePercent is SuccessfulQueries over Iterations.
	SuccessRatePercent float64

	// AvgResponseTime, MinResponseTime, and MaxResponseTime are
	// computed over the queries that did not fail.
	AvgResponseTime time.Duration
	MinResponseTime time.Duration
	MaxResponseTime time.Duration

	// Results contains the raw per-query results.
	Results []Result
}

// Benchmark queries the same domain repeatedly and reduces the results
// into latency and success statistics.
func (c *Client) Benchmark(ctx context.Context, domain string, iterations int) BenchmarkResult {
	bench := BenchmarkResult{
		Domain:     domain,
		Iterations: iterations,
		Results:    make([]Result, 0, iterations),
	}
	var total time.Duration
	var measured int
	for range iterations {
		res := c.Query(ctx, domain, TypeA)
		bench.Results = append(bench.Results, res)
		if res.Status == StatusAllowed || res.Status == StatusBlocked {
			bench.SuccessfulQueries++
		}
		if res.Status == StatusError {
			continue
		}
		total += res.ResponseTime
		measured++
		if bench.MinResponseTime == 0 || res.ResponseTime < bench.MinResponseTime {
			bench.MinResponseTime = res.ResponseTime
		}
		if res.ResponseTime > bench.MaxResponseTime {
			bench.MaxResponseTime = res.ResponseTime
		}
	}
	if measured > 0 {
		bench.AvgResponseTime = total / time.Duration(measured)
	}
	if iterations > 0 {
		bench.SuccessRatePercent = float64(bench.SuccessfulQueries) / float64(iterations) * 100
	}
	return bench
}
