package dnstest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

// DefaultTimeout bounds one resolver probe, covering both A and AAAA queries.
const DefaultTimeout = 4000 * time.Millisecond

// Prober resolves a domain against exactly one resolver over UDP.
type Prober struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber creates a Prober. A non-positive timeout selects DefaultTimeout.
func NewProber(timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{timeout: timeout, logger: logging.OrNop(logger)}
}

// Timeout returns the bound applied to each probe.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

type lookupOutcome struct {
	addrs int
	err   error
}

// Lookup resolves domain against server ("ip:port"). It returns nil if any
// address came back. The client's own timeout and the outer bound are the
// same value; whichever fires, the outcome is errkind.Timeout.
func (p *Prober) Lookup(ctx context.Context, domain, server string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client := &dns.Client{Net: "udp", Timeout: p.timeout}

	// The exchange may outlive the bound; its goroutine finishes on its own.
	done := make(chan lookupOutcome, 1)
	go func() {
		n, err := lookupIP(ctx, client, domain, server)
		done <- lookupOutcome{addrs: n, err: err}
	}()

	select {
	case out := <-done:
		return out.err
	case <-ctx.Done():
		return errkind.New(errkind.Timeout, "dns "+server, nil)
	}
}

// lookupIP queries A first and falls back to AAAA when no IPv4 address exists.
func lookupIP(ctx context.Context, client *dns.Client, domain, server string) (int, error) {
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		n, err := query(ctx, client, domain, server, qtype)
		if err == nil && n > 0 {
			return n, nil
		}
		if err != nil {
			// Transport failures will not improve on the second query.
			if errkind.Of(err) != errkind.ResolutionFailed {
				return 0, err
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = errkind.New(errkind.ResolutionFailed, "dns "+server, fmt.Errorf("no record found for %s", domain))
	}
	return 0, lastErr
}

func query(ctx context.Context, client *dns.Client, domain, server string, qtype uint16) (int, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, m, server)
	if err != nil {
		var ne net.Error
		if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return 0, errkind.New(errkind.Timeout, "dns "+server, nil)
		}
		return 0, errkind.New(errkind.TransportError, "dns "+server, err)
	}

	if resp.Rcode != dns.RcodeSuccess {
		return 0, errkind.New(errkind.ResolutionFailed, "dns "+server,
			fmt.Errorf("%s for %s", dns.RcodeToString[resp.Rcode], domain))
	}

	n := 0
	for _, rr := range resp.Answer {
		switch rr.(type) {
		case *dns.A, *dns.AAAA:
			n++
		}
	}
	return n, nil
}
