package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// appDirName is the directory under the user config dir holding all app files.
const appDirName = "pulsenet"

// Provider holds the endpoint set used by one speed test backend.
type Provider struct {
	Name        string `yaml:"name"`
	PingURL     string `yaml:"ping_url"`
	DownloadURL string `yaml:"download_url"`
	UploadURL   string `yaml:"upload_url"`
	GeoURL      string `yaml:"geo_url"`
	// GeoFormat is "trace" (line-oriented key=value) or "json".
	GeoFormat string `yaml:"geo_format"`
}

// Config holds every tunable of the diagnostics engine.
type Config struct {
	UserAgent string `yaml:"user_agent"`

	PingTimeoutMs   int `yaml:"ping_timeout_ms"`
	PingPayloadSize int `yaml:"ping_payload_size"`

	DNSTimeoutMs    int      `yaml:"dns_timeout_ms"`
	// ExtraDNSServers are tested after BuiltinDNSServers on every run.
	ExtraDNSServers []string `yaml:"extra_dns_servers"`

	LatencySamples int   `yaml:"latency_samples"`
	DownloadBytes  int64 `yaml:"download_bytes"`
	UploadBytes    int64 `yaml:"upload_bytes"`
	HTTPTimeoutMs  int   `yaml:"http_timeout_ms"`

	ProviderA Provider `yaml:"provider_a"`
	ProviderB Provider `yaml:"provider_b"`

	GeoIPDatabase string `yaml:"geoip_database"`

	ReleaseRepo string `yaml:"release_repo"`
	ReleaseAPI  string `yaml:"release_api"`

	AdapterCacheTTLMs int `yaml:"adapter_cache_ttl_ms"`
}

// BuiltinDNSServers are the public resolvers every DNS test runs against, in order.
var BuiltinDNSServers = []string{
	"8.8.8.8",
	"8.8.4.4",
	"1.1.1.1",
	"1.0.0.1",
	"9.9.9.9",
	"149.112.112.112",
	"208.67.222.222",
	"208.67.220.220",
}

const (
	cloudflareBase = "https://speed.cloudflare.com"
	downloadBytes  = 10 * 1024 * 1024
	uploadBytes    = 5 * 1024 * 1024
)

// Default returns the configuration the application ships with.
func Default() *Config {
	return &Config{
		UserAgent:       "PulseNet",
		PingTimeoutMs:   2000,
		PingPayloadSize: 32,
		DNSTimeoutMs:    4000,
		LatencySamples:  5,
		DownloadBytes:   downloadBytes,
		UploadBytes:     uploadBytes,
		HTTPTimeoutMs:   60000,
		ProviderA: Provider{
			Name:        "cloudflare",
			PingURL:     cloudflareBase + "/__ping",
			DownloadURL: fmt.Sprintf("%s/__down?bytes=%d", cloudflareBase, downloadBytes),
			UploadURL:   cloudflareBase + "/__up",
			GeoURL:      cloudflareBase + "/cdn-cgi/trace",
			GeoFormat:   "trace",
		},
		ProviderB: Provider{
			Name:        "hetzner",
			PingURL:     "https://www.gstatic.com/generate_204",
			DownloadURL: "https://speed.hetzner.de/10MB.bin",
			UploadURL:   "https://httpbin.org/post",
			GeoURL:      "https://ipwho.is/",
			GeoFormat:   "json",
		},
		ReleaseRepo:       "SM8KE1/PulseNet",
		ReleaseAPI:        "https://api.github.com",
		AdapterCacheTTLMs: 5000,
	}
}

// Dir returns the application config directory, e.g. %AppData%\pulsenet.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return appDirName
		}
		return filepath.Join(home, "."+appDirName)
	}
	return filepath.Join(base, appDirName)
}

// Path returns the default location of config.yaml.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the YAML file at path on top of Default. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Validate()
	return cfg, nil
}

// Validate replaces unusable values with their defaults.
func (c *Config) Validate() {
	d := Default()

	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.PingTimeoutMs <= 0 {
		c.PingTimeoutMs = d.PingTimeoutMs
	}
	if c.PingPayloadSize <= 0 {
		c.PingPayloadSize = d.PingPayloadSize
	}
	if c.DNSTimeoutMs <= 0 {
		c.DNSTimeoutMs = d.DNSTimeoutMs
	}
	if c.LatencySamples <= 0 {
		c.LatencySamples = d.LatencySamples
	}
	if c.DownloadBytes <= 0 {
		c.DownloadBytes = d.DownloadBytes
	}
	if c.UploadBytes <= 0 {
		c.UploadBytes = d.UploadBytes
	}
	if c.HTTPTimeoutMs <= 0 {
		c.HTTPTimeoutMs = d.HTTPTimeoutMs
	}
	if c.ProviderA.PingURL == "" {
		c.ProviderA = d.ProviderA
	}
	if c.ProviderB.PingURL == "" {
		c.ProviderB = d.ProviderB
	}
	if c.ReleaseRepo == "" {
		c.ReleaseRepo = d.ReleaseRepo
	}
	if c.ReleaseAPI == "" {
		c.ReleaseAPI = d.ReleaseAPI
	}
	if c.AdapterCacheTTLMs <= 0 {
		c.AdapterCacheTTLMs = d.AdapterCacheTTLMs
	}
}

// DNSServers returns the resolvers a DNS test starts from: the built-in set
// followed by ExtraDNSServers.
func (c *Config) DNSServers() []string {
	servers := make([]string, 0, len(BuiltinDNSServers)+len(c.ExtraDNSServers))
	servers = append(servers, BuiltinDNSServers...)
	return append(servers, c.ExtraDNSServers...)
}

func (c *Config) PingTimeout() time.Duration {
	return time.Duration(c.PingTimeoutMs) * time.Millisecond
}

func (c *Config) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

func (c *Config) AdapterCacheTTL() time.Duration {
	return time.Duration(c.AdapterCacheTTLMs) * time.Millisecond
}
