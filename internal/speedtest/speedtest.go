// Package speedtest measures latency, throughput and public identity against
// a named set of HTTP endpoints.
package speedtest

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pulsenet/internal/config"
	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

// Stage names reported in Report.FailedStages.
const (
	StageLatency  = "latency"
	StageDownload = "download"
	StageUpload   = "upload"
	StageGeo      = "geo"
)

// Report is the outcome of one speed test run. Every field is populated even
// when every stage fails.
type Report struct {
	DownloadMbps float64 `json:"downloadMbps"`
	UploadMbps   float64 `json:"uploadMbps"`
	LatencyMs    float64 `json:"latencyMs"`
	JitterMs     float64 `json:"jitterMs"`
	IP           string  `json:"ip"`
	Country      string  `json:"country"`
	Error        *string `json:"error"`
	// FailedStages separates "no data" from a measured zero.
	FailedStages []string `json:"failedStages,omitempty"`
}

// Runner composes the samplers and the geo locator into one report.
type Runner struct {
	cfg     *config.Config
	sampler *Sampler
	geo     *GeoLocator
	logger  *zap.Logger
}

// NewRunner creates a Runner from cfg. A nil cfg selects config.Default().
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	logger = logging.OrNop(logger)
	client := &http.Client{Timeout: cfg.HTTPTimeout()}
	return &Runner{
		cfg:     cfg,
		sampler: NewSampler(client, cfg.UserAgent, logger),
		geo:     NewGeoLocator(client, cfg.UserAgent, cfg.GeoIPDatabase, logger),
		logger:  logger,
	}
}

// Provider returns the endpoint set for name: "A" or "B" (case-insensitive),
// or the provider's configured name.
func (r *Runner) Provider(name string) (config.Provider, bool) {
	n := strings.TrimSpace(name)
	switch {
	case strings.EqualFold(n, "A"), r.cfg.ProviderA.Name != "" && strings.EqualFold(n, r.cfg.ProviderA.Name):
		return r.cfg.ProviderA, true
	case strings.EqualFold(n, "B"), r.cfg.ProviderB.Name != "" && strings.EqualFold(n, r.cfg.ProviderB.Name):
		return r.cfg.ProviderB, true
	}
	return config.Provider{}, false
}

// Run measures against the named provider. It never fails outright: an unknown
// provider yields a placeholder report with error "invalid-input", and a run in
// which no stage succeeded carries error "transport-error".
func (r *Runner) Run(ctx context.Context, provider string, progress ProgressFunc) Report {
	p, ok := r.Provider(provider)
	if !ok {
		msg := string(errkind.InvalidInput)
		return Report{IP: NotAvailable, Country: NotAvailable, Error: &msg}
	}
	return r.RunProvider(ctx, p, progress)
}

// RunProvider measures against p: latency, download, upload, then geo. Each
// stage runs regardless of how the previous one ended.
func (r *Runner) RunProvider(ctx context.Context, p config.Provider, progress ProgressFunc) Report {
	start := time.Now()
	var failed []string

	samples, misses := r.sampler.Latency(ctx, p.PingURL, r.cfg.LatencySamples)
	latency, jitter := LatencyStats(samples)
	if misses == len(samples) {
		failed = append(failed, StageLatency)
	}

	download, err := r.sampler.Download(ctx, p.DownloadURL, r.cfg.DownloadBytes, progress)
	if err != nil {
		failed = append(failed, StageDownload)
		r.logger.Warn("download stage failed", zap.String("provider", p.Name), zap.Error(err))
	}

	upload, err := r.sampler.Upload(ctx, p.UploadURL, r.cfg.UploadBytes)
	if err != nil {
		failed = append(failed, StageUpload)
		r.logger.Warn("upload stage failed", zap.String("provider", p.Name), zap.Error(err))
	}

	ip, country, err := r.geo.Locate(ctx, p.GeoURL, p.GeoFormat)
	if err != nil {
		failed = append(failed, StageGeo)
		r.logger.Warn("geo stage failed", zap.String("provider", p.Name), zap.Error(err))
	}

	report := Report{
		DownloadMbps: round2(download),
		UploadMbps:   round2(upload),
		LatencyMs:    round2(latency),
		JitterMs:     round2(jitter),
		IP:           ip,
		Country:      country,
		FailedStages: failed,
	}
	if len(failed) == 4 {
		msg := string(errkind.TransportError)
		report.Error = &msg
	}

	r.logger.Info("speed test finished",
		zap.String("provider", p.Name),
		zap.Float64("downloadMbps", report.DownloadMbps),
		zap.Float64("uploadMbps", report.UploadMbps),
		zap.Float64("latencyMs", report.LatencyMs),
		zap.Float64("jitterMs", report.JitterMs),
		zap.Strings("failedStages", failed),
		zap.Duration("elapsed", time.Since(start)))
	return report
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}
