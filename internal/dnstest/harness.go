package dnstest

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"

	"pulsenet/internal/config"
	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

const defaultPort = 53

// Result is the outcome for one resolver.
type Result struct {
	Server         string       `json:"server"`
	Status         bool         `json:"status"`
	ResponseTimeMs int64        `json:"responseTimeMs"`
	Error          *string      `json:"error"`
	Kind           errkind.Kind `json:"errorKind,omitempty"`
}

// Response is the aggregate of one DNS test run.
type Response struct {
	Error   *string  `json:"error"`
	Results []Result `json:"results"`
}

// Looker performs a single-resolver lookup. *Prober implements it.
type Looker interface {
	Lookup(ctx context.Context, domain, server string) error
}

// ProgressFunc is called after each resolver finishes.
type ProgressFunc func(result Result, current, total int)

// Harness runs a lookup against every effective resolver, one after another.
type Harness struct {
	looker  Looker
	builtin []string
	logger  *zap.Logger
}

// NewHarness creates a Harness. A nil builtin list selects config.BuiltinDNSServers.
func NewHarness(looker Looker, builtin []string, logger *zap.Logger) *Harness {
	if builtin == nil {
		builtin = config.BuiltinDNSServers
	}
	return &Harness{
		looker:  looker,
		builtin: append([]string(nil), builtin...),
		logger:  logging.OrNop(logger),
	}
}

// SanitizeDomain strips an http(s) scheme and anything from the first
// path, query or fragment delimiter onwards.
func SanitizeDomain(input string) string {
	s := strings.TrimSpace(input)
	for strings.HasPrefix(s, "https://") {
		s = strings.TrimPrefix(s, "https://")
	}
	for strings.HasPrefix(s, "http://") {
		s = strings.TrimPrefix(s, "http://")
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// ParseServer parses "ip" or "ip:port" ("[v6]:port" for IPv6) into a dialable
// address, defaulting the port to 53.
func ParseServer(server string) (string, error) {
	s := strings.TrimSpace(server)
	if s == "" {
		return "", errkind.New(errkind.InvalidServer, "parse server", fmt.Errorf("empty server"))
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.String(), nil
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return netip.AddrPortFrom(addr, defaultPort).String(), nil
	}
	return "", errkind.New(errkind.InvalidServer, "parse server", fmt.Errorf("invalid server %q", server))
}

// Servers returns the effective resolver list: built-ins followed by custom
// entries, trimmed, with blanks dropped and exact-string duplicates removed.
func (h *Harness) Servers(custom []string) []string {
	seen := make(map[string]bool, len(h.builtin)+len(custom))
	servers := make([]string, 0, len(h.builtin)+len(custom))

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		servers = append(servers, s)
	}

	for _, s := range h.builtin {
		add(s)
	}
	for _, s := range custom {
		add(s)
	}
	return servers
}

// Run tests domain against every effective resolver.
func (h *Harness) Run(ctx context.Context, domain string, custom []string) Response {
	return h.RunWithProgress(ctx, domain, custom, nil)
}

// RunWithProgress is Run with a per-resolver callback. Every effective
// resolver yields exactly one Result, in order.
func (h *Harness) RunWithProgress(ctx context.Context, domain string, custom []string, progress ProgressFunc) Response {
	sanitized := SanitizeDomain(domain)
	if sanitized == "" {
		msg := string(errkind.InvalidDomain)
		return Response{Error: &msg, Results: []Result{}}
	}

	servers := h.Servers(custom)
	results := make([]Result, 0, len(servers))
	runStart := time.Now()

	for i, server := range servers {
		r := h.probeOne(ctx, sanitized, server)
		results = append(results, r)
		if progress != nil {
			progress(r, i+1, len(servers))
		}
	}

	ok := 0
	for _, r := range results {
		if r.Status {
			ok++
		}
	}
	h.logger.Info("dns test finished",
		zap.String("domain", sanitized),
		zap.Int("servers", len(results)),
		zap.Int("succeeded", ok),
		zap.Duration("elapsed", time.Since(runStart)))

	return Response{Results: results}
}

func (h *Harness) probeOne(ctx context.Context, domain, server string) Result {
	start := time.Now()

	addr, err := ParseServer(server)
	if err != nil {
		msg := string(errkind.InvalidServer)
		return Result{
			Server:         server,
			Status:         false,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Error:          &msg,
			Kind:           errkind.InvalidServer,
		}
	}

	err = h.looker.Lookup(ctx, domain, addr)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		kind := errkind.Of(err)
		if kind == "" {
			kind = errkind.TransportError
		}
		msg := errkind.Message(err)
		h.logger.Debug("dns probe failed",
			zap.String("server", server),
			zap.String("kind", string(kind)),
			zap.Int64("elapsedMs", elapsed),
			zap.Error(err))
		return Result{Server: server, Status: false, ResponseTimeMs: elapsed, Error: &msg, Kind: kind}
	}

	h.logger.Debug("dns probe ok", zap.String("server", server), zap.Int64("elapsedMs", elapsed))
	return Result{Server: server, Status: true, ResponseTimeMs: elapsed}
}
