package resolve

import (
	"context"
	"errors"
	"net"
	"testing"

	"pulsenet/internal/errkind"
)

func TestResolveLiteral(t *testing.T) {
	called := false
	r := NewHostResolverWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		called = true
		return nil, errors.New("should not be called")
	})

	tests := []struct {
		host string
		want string
	}{
		{"127.0.0.1", "127.0.0.1"},
		{"::1", "::1"},
		{" 8.8.8.8 ", "8.8.8.8"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			addr, err := r.Resolve(context.Background(), tt.host)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.host, err)
			}
			if addr.IP.String() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.host, addr.IP, tt.want)
			}
		})
	}

	if called {
		t.Error("lookup should not run for IP literals")
	}
}

func TestResolveFirstAddressWins(t *testing.T) {
	r := NewHostResolverWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return []net.IPAddr{
			{IP: net.ParseIP("2001:db8::1")},
			{IP: net.ParseIP("192.0.2.1")},
		}, nil
	})

	addr, err := r.Resolve(context.Background(), "example.test")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if addr.IP.String() != "2001:db8::1" {
		t.Errorf("Resolve = %s, want first entry 2001:db8::1", addr.IP)
	}
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		lookup LookupFunc
	}{
		{
			name: "lookup error",
			host: "does-not-exist.invalid",
			lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
				return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
			},
		},
		{
			name: "empty answer",
			host: "empty.test",
			lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
				return nil, nil
			},
		},
		{
			name: "blank host",
			host: "   ",
			lookup: func(ctx context.Context, host string) ([]net.IPAddr, error) {
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewHostResolverWithLookup(tt.lookup)
			addr, err := r.Resolve(context.Background(), tt.host)
			if err == nil {
				t.Fatalf("expected error, got %v", addr)
			}
			if !errkind.Is(err, errkind.ResolutionFailed) {
				t.Errorf("error kind = %q, want %q", errkind.Of(err), errkind.ResolutionFailed)
			}
		})
	}
}
