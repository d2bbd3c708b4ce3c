package speedtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VividCortex/ewma"
	"go.uber.org/zap"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
)

// progressInterval is the width of one rate slice fed into the moving average.
const progressInterval = 100 * time.Millisecond

// Progress describes a download in flight.
type Progress struct {
	Bytes int64   `json:"bytes"`
	Total int64   `json:"total"`
	Mbps  float64 `json:"mbps"`
}

// ProgressFunc receives download progress. It runs on the sampling goroutine.
type ProgressFunc func(Progress)

// Sampler performs the HTTP transfers behind a speed test.
type Sampler struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewSampler creates a Sampler. A nil client selects http.DefaultClient.
func NewSampler(client *http.Client, userAgent string, logger *zap.Logger) *Sampler {
	if client == nil {
		client = http.DefaultClient
	}
	return &Sampler{client: client, userAgent: userAgent, logger: logging.OrNop(logger)}
}

func (s *Sampler) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errkind.New(errkind.InvalidInput, method+" "+url, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return req, nil
}

// Mbps converts a byte count moved in elapsed into megabits per second.
// It never returns a negative or non-finite value.
func Mbps(n int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if n <= 0 || secs <= 0 {
		return 0
	}
	return float64(n) * 8 / secs / 1e6
}

// Download fetches url and returns bits received over total elapsed time in
// Mbps. expected, when positive, is reported as the total if the server does
// not send a Content-Length. Any failure yields 0 and the error.
func (s *Sampler) Download(ctx context.Context, url string, expected int64, progress ProgressFunc) (float64, error) {
	req, err := s.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errkind.New(errkind.TransportError, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errkind.New(errkind.TransportError, "download", fmt.Errorf("unexpected status %s", resp.Status))
	}

	total := resp.ContentLength
	if total <= 0 {
		total = expected
	}

	n, err := s.readBody(resp.Body, start, total, progress)
	elapsed := time.Since(start)
	if err != nil {
		return 0, errkind.New(errkind.TransportError, "download", err)
	}

	mbps := Mbps(n, elapsed)
	s.logger.Debug("download finished",
		zap.String("url", url),
		zap.Int64("bytes", n),
		zap.Duration("elapsed", elapsed),
		zap.Float64("mbps", mbps))
	return mbps, nil
}

// readBody drains body, feeding per-slice rates into an EWMA so progress
// reports a smoothed instantaneous rate rather than the running average.
func (s *Sampler) readBody(body io.Reader, start time.Time, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 32*1024)
	avg := ewma.NewMovingAverage()

	var (
		read      int64
		sliceRead int64
		sliceAt   = start
	)

	for {
		m, err := body.Read(buf)
		read += int64(m)

		if now := time.Now(); now.Sub(sliceAt) >= progressInterval {
			avg.Add(Mbps(read-sliceRead, now.Sub(sliceAt)))
			sliceRead, sliceAt = read, now
			if progress != nil {
				progress(Progress{Bytes: read, Total: total, Mbps: avg.Value()})
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return read, err
		}
	}

	if progress != nil {
		final := avg.Value()
		if final == 0 {
			final = Mbps(read, time.Since(start))
		}
		progress(Progress{Bytes: read, Total: total, Mbps: final})
	}
	return read, nil
}

// Upload POSTs size zero bytes to url and returns the configured payload size
// over elapsed time in Mbps. The response body is not inspected beyond its
// status. Any failure yields 0 and the error.
func (s *Sampler) Upload(ctx context.Context, url string, size int64) (float64, error) {
	if size <= 0 {
		return 0, errkind.New(errkind.InvalidInput, "upload", fmt.Errorf("payload size %d", size))
	}

	req, err := s.newRequest(ctx, http.MethodPost, url, bytes.NewReader(make([]byte, size)))
	if err != nil {
		return 0, err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errkind.New(errkind.TransportError, "upload", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errkind.New(errkind.TransportError, "upload", fmt.Errorf("unexpected status %s", resp.Status))
	}

	mbps := Mbps(size, elapsed)
	s.logger.Debug("upload finished",
		zap.String("url", url),
		zap.Int64("bytes", size),
		zap.Duration("elapsed", elapsed),
		zap.Float64("mbps", mbps))
	return mbps, nil
}
