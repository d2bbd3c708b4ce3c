package speedtest

import (
	"context"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Latency issues n sequential GETs against url and returns the wall-clock
// round trip of each in milliseconds, plus how many requests failed. Failed
// requests still yield a sample.
func (s *Sampler) Latency(ctx context.Context, url string, n int) ([]float64, int) {
	samples := make([]float64, 0, n)
	failed := 0

	for i := 0; i < n; i++ {
		start := time.Now()
		if err := s.roundTrip(ctx, url); err != nil {
			failed++
			s.logger.Debug("latency request failed", zap.String("url", url), zap.Int("sample", i), zap.Error(err))
		}
		samples = append(samples, float64(time.Since(start))/float64(time.Millisecond))
	}

	if failed == n && n > 0 {
		s.logger.Warn("all latency requests failed", zap.String("url", url), zap.Int("samples", n))
	}
	return samples, failed
}

func (s *Sampler) roundTrip(ctx context.Context, url string) error {
	req, err := s.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// LatencyStats returns the arithmetic mean of samples and the jitter, the mean
// absolute difference between adjacent samples. Both are 0 for an empty set;
// jitter is 0 for a single sample.
func LatencyStats(samples []float64) (avg, jitter float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}
	avg = sum / float64(len(samples))

	if len(samples) > 1 {
		var diff float64
		for i := 1; i < len(samples); i++ {
			diff += math.Abs(samples[i] - samples[i-1])
		}
		jitter = diff / float64(len(samples)-1)
	}
	return avg, jitter
}
