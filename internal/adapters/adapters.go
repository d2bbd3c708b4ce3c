// Package adapters lists and configures the DNS servers of the host's
// network adapters. Only Windows is supported; elsewhere New returns a
// manager that reports unsupported-platform.
package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

// DefaultCacheTTL is how long a listing is served from cache.
const DefaultCacheTTL = 5000 * time.Millisecond

const listScript = "Get-DnsClientServerAddress -AddressFamily IPv4 | Select-Object InterfaceAlias,ServerAddresses | ConvertTo-Json -Depth 4 -Compress"

// Adapter is one network interface and its configured IPv4 DNS servers.
type Adapter struct {
	Name string   `json:"name"`
	DNS  []string `json:"dns"`
}

// Result reports the outcome of a configuration change.
type Result struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

// Manager lists and changes adapter DNS settings.
type Manager interface {
	List(ctx context.Context, forceRefresh bool) []Adapter
	Set(ctx context.Context, adapter, primary, secondary string) Result
	Reset(ctx context.Context, adapter string) Result
}

// Shell runs PowerShell scripts.
type Shell interface {
	Run(ctx context.Context, script string) ([]byte, error)
	RunElevated(ctx context.Context, script string) ([]byte, error)
	Elevated() bool
}

// ShellManager implements Manager on top of a Shell. Listings are cached for
// a TTL and concurrent refreshes share one child process.
type ShellManager struct {
	shell  Shell
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   []Adapter
	cachedAt time.Time
	valid    bool

	group singleflight.Group
}

// NewShellManager creates a ShellManager. A non-positive ttl selects DefaultCacheTTL.
func NewShellManager(shell Shell, ttl time.Duration, logger *zap.Logger) *ShellManager {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ShellManager{shell: shell, ttl: ttl, logger: logging.OrNop(logger), now: time.Now}
}

// List returns adapters sorted by name. A failed listing yields an empty slice.
func (m *ShellManager) List(ctx context.Context, forceRefresh bool) []Adapter {
	if !forceRefresh {
		if adapters, ok := m.fromCache(); ok {
			return adapters
		}
	}

	v, _, _ := m.group.Do("list", func() (any, error) {
		out, err := m.shell.Run(ctx, listScript)
		if err != nil {
			m.logger.Warn("failed to list adapters", zap.Error(err))
			return []Adapter{}, nil
		}
		adapters := ParseAdapters(out)
		m.store(adapters)
		return adapters, nil
	})
	return clone(v.([]Adapter))
}

func (m *ShellManager) fromCache() ([]Adapter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid || m.now().Sub(m.cachedAt) > m.ttl {
		return nil, false
	}
	return clone(m.cached), true
}

func (m *ShellManager) store(adapters []Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = adapters
	m.cachedAt = m.now()
	m.valid = true
}

// ClearCache drops the cached listing.
func (m *ShellManager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = nil
	m.valid = false
}

// Set points adapter at primary and, when non-empty, secondary.
func (m *ShellManager) Set(ctx context.Context, adapter, primary, secondary string) Result {
	script, err := SetScript(adapter, primary, secondary)
	if err != nil {
		return failure(err)
	}
	return m.apply(ctx, script)
}

// Reset returns adapter to DHCP-provided DNS servers.
func (m *ShellManager) Reset(ctx context.Context, adapter string) Result {
	script, err := ResetScript(adapter)
	if err != nil {
		return failure(err)
	}
	return m.apply(ctx, script)
}

// apply runs script, retrying through an elevation prompt when the plain
// attempt fails and the process is not already elevated.
func (m *ShellManager) apply(ctx context.Context, script string) Result {
	out, err := m.shell.Run(ctx, script)
	if err != nil && !m.shell.Elevated() {
		m.logger.Info("retrying adapter change elevated", zap.Error(err))
		out, err = m.shell.RunElevated(ctx, script)
	}
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		m.logger.Warn("adapter change failed", zap.String("output", msg), zap.Error(err))
		return Result{Success: false, Error: &msg}
	}

	m.ClearCache()
	return Result{Success: true}
}

// SetScript builds the PowerShell command assigning DNS servers to adapter.
// All arguments are trimmed; adapter and primary are required and every
// server must be an IP address.
func SetScript(adapter, primary, secondary string) (string, error) {
	adapter = strings.TrimSpace(adapter)
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)

	if adapter == "" || primary == "" {
		return "", errkind.New(errkind.InvalidInput, "set dns", nil)
	}

	servers := []string{primary}
	if secondary != "" {
		servers = append(servers, secondary)
	}

	quoted := make([]string, len(servers))
	for i, s := range servers {
		if _, err := netip.ParseAddr(s); err != nil {
			return "", errkind.New(errkind.InvalidInput, "set dns", nil)
		}
		quoted[i] = "'" + EscapeSingle(s) + "'"
	}

	return fmt.Sprintf("Set-DnsClientServerAddress -InterfaceAlias '%s' -ServerAddresses @(%s)",
		EscapeSingle(adapter), strings.Join(quoted, ",")), nil
}

// ResetScript builds the PowerShell command resetting adapter to DHCP DNS.
func ResetScript(adapter string) (string, error) {
	adapter = strings.TrimSpace(adapter)
	if adapter == "" {
		return "", errkind.New(errkind.InvalidInput, "reset dns", nil)
	}
	return fmt.Sprintf("Set-DnsClientServerAddress -InterfaceAlias '%s' -ResetServerAddresses",
		EscapeSingle(adapter)), nil
}

// ElevatedScript wraps script in a Start-Process -Verb RunAs call that waits
// for the elevated child and exits with its exit code. The child stops on the
// first error so a failed cmdlet yields a non-zero code.
func ElevatedScript(script string) string {
	return fmt.Sprintf(
		`$p = Start-Process powershell -Verb RunAs -Wait -PassThru -WindowStyle Hidden -ArgumentList '-NoProfile -NonInteractive -EncodedCommand %s'; if ($p.ExitCode -ne 0) { exit $p.ExitCode }`,
		EncodeCommand("$ErrorActionPreference = 'Stop'\n"+script),
	)
}

// EncodeCommand encodes script as UTF-16LE Base64 for -EncodedCommand.
func EncodeCommand(script string) string {
	units := utf16.Encode([]rune(script))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[i*2] = byte(u)
		b[i*2+1] = byte(u >> 8)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// EscapeSingle escapes s for use inside a single-quoted PowerShell string.
func EscapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

type rawAdapter struct {
	InterfaceAlias  any `json:"InterfaceAlias"`
	ServerAddresses any `json:"ServerAddresses"`
}

// ParseAdapters decodes ConvertTo-Json output, which is a single object for
// one adapter and an array otherwise. Entries without a name are dropped,
// DNS entries are trimmed and blanks removed, and the result is sorted by name.
func ParseAdapters(out []byte) []Adapter {
	adapters := []Adapter{}

	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return adapters
	}

	var items []rawAdapter
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return adapters
		}
	} else {
		var one rawAdapter
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return adapters
		}
		items = []rawAdapter{one}
	}

	for _, item := range items {
		name, _ := item.InterfaceAlias.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		dns := []string{}
		if list, ok := item.ServerAddresses.([]any); ok {
			for _, v := range list {
				s, ok := v.(string)
				if !ok {
					continue
				}
				if s = strings.TrimSpace(s); s != "" {
					dns = append(dns, s)
				}
			}
		}
		adapters = append(adapters, Adapter{Name: name, DNS: dns})
	}

	sort.SliceStable(adapters, func(i, j int) bool { return adapters[i].Name < adapters[j].Name })
	return adapters
}

// Unsupported is the Manager used where adapter configuration is unavailable.
type Unsupported struct{}

func (Unsupported) List(ctx context.Context, forceRefresh bool) []Adapter {
	return []Adapter{}
}

func (Unsupported) Set(ctx context.Context, adapter, primary, secondary string) Result {
	return failure(errkind.New(errkind.UnsupportedPlatform, "set dns", nil))
}

func (Unsupported) Reset(ctx context.Context, adapter string) Result {
	return failure(errkind.New(errkind.UnsupportedPlatform, "reset dns", nil))
}

func failure(err error) Result {
	msg := string(errkind.Of(err))
	if msg == "" {
		msg = err.Error()
	}
	return Result{Success: false, Error: &msg}
}

func clone(in []Adapter) []Adapter {
	out := make([]Adapter, len(in))
	for i, a := range in {
		out[i] = Adapter{Name: a.Name, DNS: append([]string{}, a.DNS...)}
	}
	return out
}
