// SPDX-License-Identifier: GPL-3.0-or-later

package dnsim

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationQueryPublicResolver(t *testing.T) {
	if testing.Short() {
		t.Skip("skip test in short mode")
	}
	client := NewClient(&net.Dialer{}, "8.8.4.4:53")
	res := client.Query(context.Background(), "dns.google", TypeA)
	assert.Equal(t, StatusAllowed, res.Status)
	assert.Equal(t, 0, res.ResponseCode)
	assert.NotEmpty(t, res.ResolvedIPs)
}

func TestIntegrationBatchQueryPublicResolver(t *testing.T) {
	if testing.Short() {
		t.Skip("skip test in short mode")
	}
	client := NewClient(&net.Dialer{}, "8.8.4.4:53")
	domains := []string{"dns.google", "example.com"}
	results := client.BatchQuery(context.Background(), domains, TypeA)
	assert.Len(t, results, len(domains))
	for idx, res := range results {
		assert.Equal(t, domains[idx], res.Domain)
	}
}
