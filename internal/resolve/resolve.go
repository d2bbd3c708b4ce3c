package resolve

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"

	"pulsenet/internal/errkind"
)

// ErrNoAddress is returned when the platform resolver answers with an empty set.
var ErrNoAddress = errors.New("Unable to resolve host")

// LookupFunc matches net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// HostResolver turns a hostname into one routable address using the
// platform resolver chain.
type HostResolver struct {
	lookup LookupFunc
}

// NewHostResolver returns a resolver backed by net.DefaultResolver.
func NewHostResolver() *HostResolver {
	return &HostResolver{lookup: net.DefaultResolver.LookupIPAddr}
}

// NewHostResolverWithLookup returns a resolver backed by fn.
func NewHostResolverWithLookup(fn LookupFunc) *HostResolver {
	return &HostResolver{lookup: fn}
}

// Resolve returns the first address of any family for host. IP literals are
// returned without a lookup. Failures carry errkind.ResolutionFailed.
func (r *HostResolver) Resolve(ctx context.Context, host string) (*net.IPAddr, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errkind.New(errkind.ResolutionFailed, "resolve", errors.New("empty host"))
	}

	// Literal addresses, including zoned IPv6 ("fe80::1%eth0").
	if ip, err := netip.ParseAddr(host); err == nil {
		return &net.IPAddr{IP: ip.Unmap().AsSlice(), Zone: ip.Zone()}, nil
	}

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		return nil, errkind.New(errkind.ResolutionFailed, "resolve "+host, err)
	}
	if len(addrs) == 0 {
		return nil, errkind.New(errkind.ResolutionFailed, "resolve "+host, ErrNoAddress)
	}

	first := addrs[0]
	return &first, nil
}
