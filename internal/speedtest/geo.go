package speedtest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

// NotAvailable marks a geo field that could not be determined.
const NotAvailable = "N/A"

// Geo response formats.
const (
	FormatTrace = "trace"
	FormatJSON  = "json"
)

// maxGeoBody caps how much of an identification response is read.
const maxGeoBody = 64 * 1024

// DefaultGeoIPPaths are the locations searched for a GeoLite2 country database
// when none is configured.
var DefaultGeoIPPaths = []string{
	"/usr/share/GeoIP/GeoLite2-Country.mmdb",
	"/usr/local/share/GeoIP/GeoLite2-Country.mmdb",
}

// ParseTrace extracts the client IP and country from a line-oriented
// key=value body. The first non-empty ip= and loc= lines win.
func ParseTrace(body string) (ip, country string) {
	ip, country = NotAvailable, NotAvailable
	foundIP, foundLoc := false, false

	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "ip="); ok && !foundIP {
			if v = strings.TrimSpace(v); v != "" {
				ip, foundIP = v, true
			}
		}
		if v, ok := strings.CutPrefix(line, "loc="); ok && !foundLoc {
			if v = strings.TrimSpace(v); v != "" {
				country, foundLoc = v, true
			}
		}
		if foundIP && foundLoc {
			break
		}
	}
	return ip, country
}

// ParseJSON extracts "ip" and "country_code" (or "countryCode") from a JSON
// object. Each field falls back to NotAvailable independently.
func ParseJSON(body []byte) (ip, country string) {
	ip, country = NotAvailable, NotAvailable

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ip, country
	}

	if v, ok := obj["ip"].(string); ok {
		ip = v
	}
	for _, key := range []string{"country_code", "countryCode"} {
		if raw, present := obj[key]; present {
			if v, ok := raw.(string); ok {
				country = v
			}
			break
		}
	}
	return ip, country
}

// GeoLocator performs the trailing identification call of a speed test.
type GeoLocator struct {
	client    *http.Client
	userAgent string
	dbPaths   []string
	logger    *zap.Logger
}

// NewGeoLocator creates a GeoLocator. dbPath, when set, is the only GeoLite2
// database consulted; otherwise DefaultGeoIPPaths are tried.
func NewGeoLocator(client *http.Client, userAgent, dbPath string, logger *zap.Logger) *GeoLocator {
	if client == nil {
		client = http.DefaultClient
	}
	paths := DefaultGeoIPPaths
	if dbPath != "" {
		paths = []string{dbPath}
	}
	return &GeoLocator{client: client, userAgent: userAgent, dbPaths: paths, logger: logging.OrNop(logger)}
}

// Locate fetches url and parses it in the given format. Failures yield
// NotAvailable fields alongside the error; a known IP with no country is
// resolved against the offline database when one is available.
func (g *GeoLocator) Locate(ctx context.Context, url, format string) (ip, country string, err error) {
	ip, country, err = g.fetch(ctx, url, format)
	if ip != NotAvailable && country == NotAvailable {
		if c, ok := g.offlineCountry(ip); ok {
			g.logger.Debug("country resolved offline", zap.String("ip", ip), zap.String("country", c))
			country = c
		}
	}
	return ip, country, err
}

func (g *GeoLocator) fetch(ctx context.Context, url, format string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NotAvailable, NotAvailable, errkind.New(errkind.InvalidInput, "geo", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return NotAvailable, NotAvailable, errkind.New(errkind.TransportError, "geo", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeoBody))
	if err != nil {
		return NotAvailable, NotAvailable, errkind.New(errkind.TransportError, "geo", err)
	}

	switch format {
	case FormatJSON:
		ip, country := ParseJSON(body)
		return ip, country, nil
	case FormatTrace, "":
		ip, country := ParseTrace(string(body))
		return ip, country, nil
	default:
		return NotAvailable, NotAvailable, errkind.New(errkind.InvalidInput, "geo", fmt.Errorf("unknown format %q", format))
	}
}

func (g *GeoLocator) offlineCountry(ipStr string) (string, bool) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", false
	}
	for _, p := range g.dbPaths {
		db, err := geoip2.Open(p)
		if err != nil {
			continue
		}
		rec, err := db.Country(ip)
		db.Close()
		if err == nil && rec != nil && rec.Country.IsoCode != "" {
			return rec.Country.IsoCode, true
		}
	}
	return "", false
}
