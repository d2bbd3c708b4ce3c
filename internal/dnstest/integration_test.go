//go:build integration

package dnstest

import (
	"context"
	"testing"

	"pulsenet/internal/config"
)

// TestPublicResolvers queries the built-in resolvers for a stable domain.
// Some networks block port 53 to third-party resolvers, so only one answer
// is required.
func TestPublicResolvers(t *testing.T) {
	h := NewHarness(NewProber(DefaultTimeout, nil), nil, nil)

	resp := h.Run(context.Background(), "example.com", nil)
	if resp.Error != nil {
		t.Fatalf("Run() error: %s", *resp.Error)
	}
	if len(resp.Results) != len(config.BuiltinDNSServers) {
		t.Fatalf("got %d results, want %d", len(resp.Results), len(config.BuiltinDNSServers))
	}

	answered := 0
	for _, r := range resp.Results {
		if r.Status {
			answered++
			if r.Error != nil {
				t.Errorf("%s: successful result carries error %q", r.Server, *r.Error)
			}
		}
		t.Logf("%-16s ok=%v %dms kind=%s", r.Server, r.Status, r.ResponseTimeMs, r.Kind)
	}
	if answered == 0 {
		t.Error("no public resolver answered")
	}
}

// TestPublicResolverNXDomain checks a reserved TLD fails without timing out.
func TestPublicResolverNXDomain(t *testing.T) {
	p := NewProber(DefaultTimeout, nil)
	err := p.Lookup(context.Background(), "does-not-exist.invalid", "1.1.1.1:53")
	if err == nil {
		t.Fatal("expected lookup of .invalid to fail")
	}
	t.Logf("lookup error: %v", err)
}
